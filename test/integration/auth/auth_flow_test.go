// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

//go:build integration

package auth_test

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authflux/authflux/internal/auth"
	"github.com/authflux/authflux/internal/world"
	"github.com/authflux/authflux/pkg/errutil"
)

var _ = Describe("Authentication flow", func() {
	var (
		ctx     context.Context
		service *auth.Service
		spawn   world.Position
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupPlayers(ctx, env.pool)

		var err error
		service, err = auth.NewService(env.Accounts, auth.NewArgon2idHasher(), auth.DefaultPasswordPolicy())
		Expect(err).NotTo(HaveOccurred())
		spawn = world.Position{World: "overworld", X: 0.5, Y: 64, Z: 0.5}
	})

	Describe("Register", func() {
		It("creates the account, stores the initial position, and grants a session", func() {
			id := ulid.Make()

			Expect(service.Register(ctx, id, "steve", "hunter2", spawn)).To(Succeed())

			loggedIn, err := env.Accounts.IsLoggedIn(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(loggedIn).To(BeTrue())

			pos, err := env.Accounts.LoadPosition(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(pos).NotTo(BeNil())
			Expect(pos.ApproxEqual(spawn)).To(BeTrue())
		})

		It("stores only a password hash, never the plaintext", func() {
			id := ulid.Make()
			Expect(service.Register(ctx, id, "steve", "hunter2", spawn)).To(Succeed())

			account, err := env.Accounts.GetByID(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(account.PasswordHash).To(HavePrefix("$argon2id$"))
			Expect(account.PasswordHash).NotTo(ContainSubstring("hunter2"))
		})

		It("rejects a second registration for the same identity", func() {
			id := ulid.Make()
			Expect(service.Register(ctx, id, "steve", "hunter2", spawn)).To(Succeed())

			err := service.Register(ctx, id, "steve", "other-pw", spawn)
			Expect(err).To(HaveOccurred())
			Expect(errutil.Code(err)).To(Equal("AUTH_ALREADY_REGISTERED"))
		})

		It("lets exactly one concurrent registration win", func() {
			id := ulid.Make()
			const attempts = 4

			errs := make([]error, attempts)
			var wg sync.WaitGroup
			for i := range attempts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					errs[i] = service.Register(ctx, id, "steve", "hunter2", spawn)
				}()
			}
			wg.Wait()

			var wins int
			for _, err := range errs {
				if err == nil {
					wins++
				} else {
					Expect(errutil.Code(err)).To(Equal("AUTH_ALREADY_REGISTERED"))
				}
			}
			Expect(wins).To(Equal(1))
		})
	})

	Describe("Login", func() {
		var id ulid.ULID

		BeforeEach(func() {
			id = ulid.Make()
			Expect(service.Register(ctx, id, "steve", "hunter2", spawn)).To(Succeed())
			Expect(env.Accounts.SetLoggedIn(ctx, id, false)).To(Succeed())
		})

		It("grants a session for the correct password", func() {
			Expect(service.Login(ctx, id, "hunter2")).To(Succeed())

			loggedIn, err := env.Accounts.IsLoggedIn(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(loggedIn).To(BeTrue())
		})

		It("leaves the session flag untouched on a wrong password", func() {
			err := service.Login(ctx, id, "wrong")
			Expect(errutil.Code(err)).To(Equal("AUTH_WRONG_PASSWORD"))

			loggedIn, err := env.Accounts.IsLoggedIn(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(loggedIn).To(BeFalse())
		})

		It("refuses a second login without checking the password", func() {
			Expect(service.Login(ctx, id, "hunter2")).To(Succeed())

			err := service.Login(ctx, id, "wrong")
			Expect(errutil.Code(err)).To(Equal("AUTH_ALREADY_LOGGED_IN"))
		})

		It("reports an unregistered identity", func() {
			err := service.Login(ctx, ulid.Make(), "hunter2")
			Expect(errutil.Code(err)).To(Equal("AUTH_NOT_REGISTERED"))
		})
	})

	Describe("startup session reset", func() {
		It("forces every identity back through login after a restart", func() {
			id := ulid.Make()
			Expect(service.Register(ctx, id, "steve", "hunter2", spawn)).To(Succeed())

			// Simulates the unclean-shutdown recovery path: the flag is
			// still set, the session is gone.
			Expect(env.Accounts.ResetAllSessions(ctx)).To(Succeed())

			loggedIn, err := env.Accounts.IsLoggedIn(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(loggedIn).To(BeFalse())

			Expect(service.Login(ctx, id, "hunter2")).To(Succeed())
		})
	})
})

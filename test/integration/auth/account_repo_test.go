// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

//go:build integration

package auth_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authflux/authflux/internal/auth"
	"github.com/authflux/authflux/internal/world"
)

func newTestAccount(username string) *auth.Account {
	now := time.Now().UTC()
	return &auth.Account{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: "$argon2id$test$hash",
		LoggedIn:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var _ = Describe("AccountRepository", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupPlayers(ctx, env.pool)
	})

	Describe("Create", func() {
		It("persists the account and makes it visible to Exists", func() {
			account := newTestAccount("steve")

			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			exists, err := env.Accounts.Exists(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		It("maps a duplicate identity to ErrAlreadyExists", func() {
			account := newTestAccount("steve")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			err := env.Accounts.Create(ctx, account)
			Expect(err).To(MatchError(auth.ErrAlreadyExists))
		})

		It("leaves no partial state after a duplicate insert", func() {
			account := newTestAccount("steve")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			dup := newTestAccount("impostor")
			dup.ID = account.ID
			Expect(env.Accounts.Create(ctx, dup)).NotTo(Succeed())

			got, err := env.Accounts.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("steve"))
		})
	})

	Describe("GetByID", func() {
		It("round-trips all account fields", func() {
			account := newTestAccount("alex")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			got, err := env.Accounts.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(account.ID))
			Expect(got.Username).To(Equal("alex"))
			Expect(got.PasswordHash).To(Equal(account.PasswordHash))
			Expect(got.LoggedIn).To(BeFalse())
			Expect(got.Position).To(BeNil())
		})

		It("wraps ErrNotFound for a missing identity", func() {
			_, err := env.Accounts.GetByID(ctx, ulid.Make())
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("session flag", func() {
		It("round-trips through SetLoggedIn and IsLoggedIn", func() {
			account := newTestAccount("steve")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			Expect(env.Accounts.SetLoggedIn(ctx, account.ID, true)).To(Succeed())
			loggedIn, err := env.Accounts.IsLoggedIn(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loggedIn).To(BeTrue())

			Expect(env.Accounts.SetLoggedIn(ctx, account.ID, false)).To(Succeed())
			loggedIn, err = env.Accounts.IsLoggedIn(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loggedIn).To(BeFalse())
		})

		It("reports false for an unregistered identity", func() {
			loggedIn, err := env.Accounts.IsLoggedIn(ctx, ulid.Make())
			Expect(err).NotTo(HaveOccurred())
			Expect(loggedIn).To(BeFalse())
		})

		It("tolerates SetLoggedIn on an unregistered identity", func() {
			Expect(env.Accounts.SetLoggedIn(ctx, ulid.Make(), false)).To(Succeed())
		})
	})

	Describe("position", func() {
		It("round-trips a saved position", func() {
			account := newTestAccount("steve")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			pos := world.Position{World: "overworld", X: 12.5, Y: 64, Z: -7.25, Yaw: 90, Pitch: -15}
			Expect(env.Accounts.SavePosition(ctx, account.ID, pos)).To(Succeed())

			got, err := env.Accounts.LoadPosition(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.ApproxEqual(pos)).To(BeTrue())
		})

		It("returns nil for an account that never moved", func() {
			account := newTestAccount("steve")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			got, err := env.Accounts.LoadPosition(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("returns nil for an unregistered identity", func() {
			got, err := env.Accounts.LoadPosition(ctx, ulid.Make())
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("refuses SavePosition for an unregistered identity", func() {
			pos := world.Position{World: "overworld", X: 1, Y: 2, Z: 3}
			err := env.Accounts.SavePosition(ctx, ulid.Make(), pos)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("keeps the latest position after repeated saves", func() {
			account := newTestAccount("steve")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			first := world.Position{World: "overworld", X: 1, Y: 2, Z: 3}
			second := world.Position{World: "nether", X: -4, Y: 32, Z: 9}
			Expect(env.Accounts.SavePosition(ctx, account.ID, first)).To(Succeed())
			Expect(env.Accounts.SavePosition(ctx, account.ID, second)).To(Succeed())

			got, err := env.Accounts.LoadPosition(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ApproxEqual(second)).To(BeTrue())
		})
	})

	Describe("ResetAllSessions", func() {
		It("clears the flag on every record", func() {
			for _, name := range []string{"steve", "alex", "herobrine"} {
				account := newTestAccount(name)
				Expect(env.Accounts.Create(ctx, account)).To(Succeed())
				Expect(env.Accounts.SetLoggedIn(ctx, account.ID, true)).To(Succeed())
			}

			Expect(env.Accounts.ResetAllSessions(ctx)).To(Succeed())

			var stillLoggedIn int
			err := env.pool.QueryRow(ctx,
				"SELECT COUNT(*) FROM players WHERE logged_in").Scan(&stillLoggedIn)
			Expect(err).NotTo(HaveOccurred())
			Expect(stillLoggedIn).To(BeZero())
		})
	})

	Describe("migration version", func() {
		It("reports a clean applied schema", func() {
			version, dirty, err := env.migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeNumerically(">=", 1))
			Expect(dirty).To(BeFalse())
		})
	})
})

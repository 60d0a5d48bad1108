// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

//go:build integration

package integration_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/aetherforge/accounts/internal/account"
	"github.com/aetherforge/accounts/internal/auth"
	"github.com/aetherforge/accounts/internal/token"
)

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, ulid.Make().String())
}

func newClientKey() ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	Expect(err).NotTo(HaveOccurred())
	return pub
}

func testProof() []byte {
	return bytes.Repeat([]byte{0xAA}, account.ProofLen)
}

var _ = Describe("Registration", func() {
	It("registers, logs in, and yields a verifiable certificate", func() {
		email := uniqueEmail("e2e")

		id, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Valid()).To(BeTrue())

		salt, params, err := env.Engine.LoginSalt(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())
		Expect(salt).To(HaveLen(account.SaltLen))
		Expect(params.Memory).To(BeNumerically(">", 0))

		session, err := env.Engine.CompleteLogin(env.ctx, email, auth.SessionData{
			Proof:     testProof(),
			PublicKey: newClientKey(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(session.AccountID).To(Equal(id))

		certID, err := env.Authority.VerifySession(session.Certificate, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(certID).To(Equal(id))
	})

	It("rejects a second registration for the same email", func() {
		email := uniqueEmail("dup")

		_, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Engine.RequestRegisterToken(env.ctx, email)
		Expect(err).To(MatchError(account.ErrEmailExists))
	})

	It("lets exactly one of two racing completions win", func() {
		email := uniqueEmail("race")

		// Two register tokens exist before any account does, so both
		// completions are plausible until the store decides.
		first, err := env.Engine.RequestRegisterToken(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())
		second, err := env.Engine.RequestRegisterToken(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, secret := range []string{first, second} {
			wg.Add(1)
			go func(i int, secret string) {
				defer wg.Done()
				defer GinkgoRecover()
				_, errs[i] = env.Engine.CompleteRegistration(env.ctx, secret, auth.SessionData{
					Proof:     testProof(),
					PublicKey: newClientKey(),
				})
			}(i, secret)
		}
		wg.Wait()

		var won, lost int
		for _, err := range errs {
			if err == nil {
				won++
			} else {
				Expect(err).To(MatchError(account.ErrEmailExists))
				lost++
			}
		}
		Expect(won).To(Equal(1))
		Expect(lost).To(Equal(1))
	})

	It("spends a register token exactly once", func() {
		email := uniqueEmail("spent")

		secret, err := env.Engine.RequestRegisterToken(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())

		session, err := env.Engine.CompleteRegistration(env.ctx, secret, auth.SessionData{
			Proof:     testProof(),
			PublicKey: newClientKey(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(session.RequiresVerification).To(BeTrue())

		_, err = env.Engine.CompleteRegistration(env.ctx, secret, auth.SessionData{
			Proof:     testProof(),
			PublicKey: newClientKey(),
		})
		Expect(err).To(MatchError(token.ErrNotFound))
	})
})

var _ = Describe("Login", func() {
	It("answers bad proofs and unknown emails identically", func() {
		email := uniqueEmail("badproof")

		_, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())

		_, wrongErr := env.Engine.CompleteLogin(env.ctx, email, auth.SessionData{
			Proof:     make([]byte, account.ProofLen),
			PublicKey: newClientKey(),
		})
		_, unknownErr := env.Engine.CompleteLogin(env.ctx, uniqueEmail("ghost"), auth.SessionData{
			Proof:     testProof(),
			PublicKey: newClientKey(),
		})

		Expect(wrongErr).To(MatchError(auth.ErrBadCredentials))
		Expect(unknownErr).To(MatchError(auth.ErrBadCredentials))
	})

	It("hands out a stable fake salt for unknown emails", func() {
		email := uniqueEmail("nosuch")

		first, _, err := env.Engine.LoginSalt(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())
		second, _, err := env.Engine.LoginSalt(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(HaveLen(account.SaltLen))
		Expect(first).To(Equal(second))
	})
})

var _ = Describe("Token consumption", func() {
	It("lets exactly one of many concurrent consumers win", func() {
		email := uniqueEmail("consume")
		id, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())

		secret, _, err := env.Issuer.Issue(env.ctx, token.Request{
			Kind:      token.KindLogin,
			AccountID: id,
			Email:     email,
		})
		Expect(err).NotTo(HaveOccurred())

		const consumers = 10
		var wg sync.WaitGroup
		errs := make([]error, consumers)
		for i := 0; i < consumers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				_, errs[i] = env.Issuer.Consume(env.ctx, token.KindLogin, secret)
			}(i)
		}
		wg.Wait()

		var won int
		for _, err := range errs {
			if err == nil {
				won++
			} else {
				Expect(err).To(MatchError(token.ErrNotFound))
			}
		}
		Expect(won).To(Equal(1))
	})

	It("fails consumption when the account is deleted underneath the token", func() {
		email := uniqueEmail("orphan")
		id, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())

		secret, _, err := env.Issuer.Issue(env.ctx, token.Request{
			Kind:      token.KindLogin,
			AccountID: id,
			Email:     email,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Accounts.DeleteAccount(env.ctx, id)).To(Succeed())

		_, err = env.Issuer.Consume(env.ctx, token.KindLogin, secret)
		Expect(err).To(Or(MatchError(account.ErrNotFound), MatchError(token.ErrNotFound)))
	})
})

var _ = Describe("One-time codes", func() {
	It("evicts the oldest live code beyond the cap", func() {
		email := uniqueEmail("otp")
		id, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())

		var codes []string
		for i := 0; i < token.OTPLiveCap; i++ {
			issued, err := env.Engine.RequestOTPs(env.ctx, id, 1)
			Expect(err).NotTo(HaveOccurred())
			codes = append(codes, issued...)
			// CreatedAt ordering decides eviction; keep insertions apart.
			time.Sleep(10 * time.Millisecond)
		}

		extra, err := env.Engine.RequestOTPs(env.ctx, id, 1)
		Expect(err).NotTo(HaveOccurred())

		// The oldest code is gone, the newest works.
		_, err = env.Issuer.Consume(env.ctx, token.KindOTP, codes[0])
		Expect(err).To(MatchError(token.ErrNotFound))

		_, err = env.Issuer.Consume(env.ctx, token.KindOTP, extra[0])
		Expect(err).NotTo(HaveOccurred())
	})

	It("refuses a single request above the cap", func() {
		email := uniqueEmail("otpcap")
		id, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Engine.RequestOTPs(env.ctx, id, token.OTPLiveCap+1)
		Expect(err).To(MatchError(token.ErrQuotaExceeded))
	})
})

var _ = Describe("Password reset", func() {
	It("replaces credentials and revokes outstanding tokens", func() {
		email := uniqueEmail("reset")
		id, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())

		// An outstanding login token that the reset must invalidate.
		outstanding, _, err := env.Issuer.Issue(env.ctx, token.Request{
			Kind:      token.KindLogin,
			AccountID: id,
			Email:     email,
		})
		Expect(err).NotTo(HaveOccurred())

		resetSecret, _, err := env.Issuer.Issue(env.ctx, token.Request{
			Kind:      token.KindPasswordReset,
			AccountID: id,
			Email:     email,
		})
		Expect(err).NotTo(HaveOccurred())

		newProof := bytes.Repeat([]byte{0xBB}, account.ProofLen)
		session, err := env.Engine.ResetPassword(env.ctx, resetSecret, auth.SessionData{
			Proof:     newProof,
			PublicKey: newClientKey(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(session.AccountID).To(Equal(id))
		Expect(session.RequiresVerification).To(BeFalse())

		_, err = env.Issuer.Consume(env.ctx, token.KindLogin, outstanding)
		Expect(err).To(MatchError(token.ErrNotFound))

		// Old proof no longer logs in, the new one does.
		_, err = env.Engine.CompleteLogin(env.ctx, email, auth.SessionData{
			Proof:     testProof(),
			PublicKey: newClientKey(),
		})
		Expect(err).To(MatchError(auth.ErrBadCredentials))

		_, err = env.Engine.CompleteLogin(env.ctx, email, auth.SessionData{
			Proof:     newProof,
			PublicKey: newClientKey(),
		})
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Token hygiene", func() {
	It("sweeps expired rows", func() {
		email := uniqueEmail("sweep")
		id, err := registerAccount(email, testProof())
		Expect(err).NotTo(HaveOccurred())

		// Insert a token already past its TTL straight through the store.
		secret, err := token.NewSecret()
		Expect(err).NotTo(HaveOccurred())
		expired := &token.Token{
			ID:        ulid.Make(),
			Kind:      token.KindLogin,
			Method:    account.MethodEmail,
			Hash:      token.HashSecret(secret),
			AccountID: id,
			Email:     email,
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-2 * time.Hour),
		}
		Expect(env.Tokens.Insert(env.ctx, expired)).To(Succeed())

		removed, err := env.Issuer.SweepExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeNumerically(">=", 1))

		_, err = env.Issuer.Consume(env.ctx, token.KindLogin, secret)
		Expect(err).To(MatchError(token.ErrNotFound))
	})
})

var _ = Describe("Game server verification", func() {
	It("derives the group id from the public key", func() {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		Expect(err).NotTo(HaveOccurred())

		group, err := env.Engine.VerifyGameServer(pub, adminSecret)
		Expect(err).NotTo(HaveOccurred())
		Expect(group.PublicKey()).To(Equal(pub))
	})

	It("rejects the wrong admin secret", func() {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Engine.VerifyGameServer(pub, "wrong")
		Expect(err).To(HaveOccurred())
	})
})

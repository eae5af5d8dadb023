package auth_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/payment-verification/internal"
	"github.com/frahmantamala/payment-verification/internal/auth"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Suite")
}

var _ = Describe("TokenManager", func() {
	var manager *auth.TokenManager

	BeforeEach(func() {
		manager = auth.NewTokenManager("test-secret", time.Hour)
	})

	Describe("Mint and Verify", func() {
		It("round-trips an ingest token", func() {
			token, err := manager.Mint("device-01", auth.ScopeIngest)
			Expect(err).NotTo(HaveOccurred())

			claims, err := manager.Verify(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Subject).To(Equal("device-01"))
			Expect(claims.Scope).To(Equal(auth.ScopeIngest))
		})

		It("rejects an unknown scope at mint time", func() {
			_, err := manager.Mint("device-01", "superuser")
			Expect(err).To(HaveOccurred())
		})

		It("rejects a token signed with a different secret", func() {
			other := auth.NewTokenManager("other-secret", time.Hour)
			token, err := other.Mint("device-01", auth.ScopeIngest)
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Verify(token)
			Expect(err).To(MatchError(apperrors.ErrInvalidToken))
		})

		It("rejects an expired token", func() {
			expired := auth.NewTokenManager("test-secret", -time.Minute)
			token, err := expired.Mint("device-01", auth.ScopeIngest)
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Verify(token)
			Expect(err).To(MatchError(apperrors.ErrTokenExpired))
		})

		It("rejects garbage", func() {
			_, err := manager.Verify("not.a.token")
			Expect(err).To(MatchError(apperrors.ErrInvalidToken))
		})
	})

	Describe("Claims.Allows", func() {
		It("lets an admin token satisfy the ingest scope", func() {
			token, err := manager.Mint("ops", auth.ScopeAdmin)
			Expect(err).NotTo(HaveOccurred())

			claims, err := manager.Verify(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Allows(auth.ScopeIngest)).To(BeTrue())
			Expect(claims.Allows(auth.ScopeAdmin)).To(BeTrue())
		})

		It("keeps an ingest token out of admin routes", func() {
			token, err := manager.Mint("device-01", auth.ScopeIngest)
			Expect(err).NotTo(HaveOccurred())

			claims, err := manager.Verify(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Allows(auth.ScopeAdmin)).To(BeFalse())
		})
	})
})

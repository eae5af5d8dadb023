package notifier

import (
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/notification"
)

type mockNotificationRepo struct {
	logs      []*notification.Log
	appendErr error
}

func (m *mockNotificationRepo) Append(log *notification.Log) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockNotificationRepo) Recent(limit int) ([]*notification.Log, error) {
	if limit > len(m.logs) {
		limit = len(m.logs)
	}
	return m.logs[:limit], nil
}

var _ = Describe("Service", func() {
	var (
		repo    *mockNotificationRepo
		service *Service
	)

	BeforeEach(func() {
		repo = &mockNotificationRepo{}
		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		service = NewService(nil, repo, "01700000000", logger)
	})

	Describe("RecordResult", func() {
		It("logs a successful send", func() {
			service.RecordResult(SendResult{
				Job: SendJob{Recipient: "8801712345678", Message: "Payment confirmed"},
			})

			Expect(repo.logs).To(HaveLen(1))
			Expect(repo.logs[0].Status).To(Equal(notification.StatusSent))
			Expect(repo.logs[0].ErrorDetail).To(BeNil())
		})

		It("logs a failed send with the error detail", func() {
			service.RecordResult(SendResult{
				Job: SendJob{Recipient: "8801712345678", Message: "Payment confirmed"},
				Err: errors.New("bridge returned status 503"),
			})

			Expect(repo.logs).To(HaveLen(1))
			Expect(repo.logs[0].Status).To(Equal(notification.StatusFailed))
			Expect(*repo.logs[0].ErrorDetail).To(ContainSubstring("503"))
		})
	})

	Describe("RecentLogs", func() {
		BeforeEach(func() {
			for i := 0; i < 5; i++ {
				repo.logs = append(repo.logs, &notification.Log{
					PhoneNumber: "8801712345678",
					Message:     "msg",
					Status:      notification.StatusSent,
				})
			}
		})

		It("clamps a zero limit to the default", func() {
			logs, err := service.RecentLogs(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(5))
		})

		It("honors an explicit limit", func() {
			logs, err := service.RecentLogs(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(2))
		})
	})
})

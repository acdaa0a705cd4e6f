package service_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/queue"
	"beacon.app/feedback/internal/service"
)

func pngBase64() string {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3)))).To(Succeed())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

var _ = Describe("IntakeService", func() {
	var (
		ctx      context.Context
		feedback *mockFeedbackStore
		auth     *mockAuthService
		producer *mockProducer
		svc      service.IntakeService
		app      *model.App
		params   service.IntakeParams
	)

	BeforeEach(func() {
		ctx = context.Background()
		feedback = &mockFeedbackStore{}
		auth = &mockAuthService{}
		producer = &mockProducer{}
		txRunner := &mockTxRunner{stores: &mockStoreProvider{feedback: feedback}}
		svc = service.NewIntakeService(txRunner, auth, producer, nil)

		app = &model.App{ID: 7, Name: "Acme"}
		message := "  hello  "
		trace := "4bf92f3577b34da6a3ce929d0e0e4736"
		params = service.IntakeParams{
			App: app,
			Payload: model.FeedbackPayload{
				Message:     &message,
				Screen:      "home",
				PackageInfo: model.PackageInfo{Name: "com.acme.app", Version: 3, VersionName: "1.2.0"},
			},
			TraceID: &trace,
		}
	})

	It("stores the report and queues it for triage", func() {
		result, err := svc.Submit(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Enqueued).To(BeTrue())

		report := result.Report
		Expect(report.ID).NotTo(BeZero())
		Expect(report.AppID).To(Equal(int64(7)))
		Expect(report.Kind).To(Equal(model.KindFeedback))
		Expect(*report.Message).To(Equal("hello"))
		Expect(report.Screen).To(Equal("home"))
		Expect(report.Status).To(Equal(model.ReportStatusReceived))
		Expect(report.UserID).To(BeNil())
		Expect(feedback.created).To(ConsistOf(report))

		Expect(producer.tasks).To(HaveLen(1))
		task := producer.tasks[0]
		Expect(task.TaskType).To(Equal(queue.TaskTypeFeedbackReport))
		Expect(task.ReportID).To(Equal(report.ID))
		Expect(task.AppID).To(Equal(int64(7)))
		Expect(task.Kind).To(Equal("feedback"))
		Expect(*task.TraceID).To(Equal("4bf92f3577b34da6a3ce929d0e0e4736"))
	})

	It("accepts a bug with only a screenshot", func() {
		shot := pngBase64()
		params.Payload.Message = nil
		params.Payload.Type = model.KindBug
		params.Payload.Screenshot = &shot

		result, err := svc.Submit(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Report.Kind).To(Equal(model.KindBug))
		Expect(result.Report.Message).To(BeNil())
		Expect(*result.Report.Screenshot).To(Equal(shot))
	})

	It("rejects a report with neither message nor screenshot", func() {
		blank := "   "
		params.Payload.Message = &blank

		_, err := svc.Submit(ctx, params)

		Expect(err).To(MatchError(service.ErrEmptyReport))
		Expect(feedback.created).To(BeEmpty())
	})

	It("rejects unknown feedback types", func() {
		params.Payload.Type = "praise"

		_, err := svc.Submit(ctx, params)

		Expect(err).To(MatchError(service.ErrInvalidKind))
	})

	DescribeTable("rejects bad screenshots",
		func(shot string, want error) {
			params.Payload.Screenshot = &shot

			_, err := svc.Submit(ctx, params)

			Expect(err).To(MatchError(want))
			Expect(feedback.created).To(BeEmpty())
		},
		Entry("not base64", "%%%", service.ErrInvalidScreenshot),
		Entry("not an image", base64.StdEncoding.EncodeToString([]byte("GIF89a nope")), service.ErrInvalidScreenshot),
		Entry("over the size limit", strings.Repeat("A", base64.StdEncoding.EncodedLen(service.MaxScreenshotBytes)+4), service.ErrScreenshotTooLarge),
	)

	Context("when the app forces authentication", func() {
		BeforeEach(func() {
			app.ForceAuth = true
		})

		It("requires a session", func() {
			_, err := svc.Submit(ctx, params)

			Expect(err).To(MatchError(service.ErrAuthRequired))
			Expect(producer.tasks).To(BeEmpty())
		})

		It("rejects an expired session", func() {
			params.SessionID = new(int64)

			_, err := svc.Submit(ctx, params)

			Expect(err).To(MatchError(service.ErrAuthRequired))
		})

		It("attributes the report to the session's user", func() {
			sessionID := int64(99)
			params.SessionID = &sessionID
			auth.validateSessionFn = func(_ context.Context, id int64) (*model.User, error) {
				Expect(id).To(Equal(int64(99)))
				return &model.User{ID: 5}, nil
			}

			result, err := svc.Submit(ctx, params)

			Expect(err).NotTo(HaveOccurred())
			Expect(*result.Report.UserID).To(Equal(int64(5)))
		})
	})

	It("treats an expired session as anonymous when auth is optional", func() {
		sessionID := int64(99)
		params.SessionID = &sessionID

		result, err := svc.Submit(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Report.UserID).To(BeNil())
	})

	It("fails on session lookup errors", func() {
		sessionID := int64(99)
		params.SessionID = &sessionID
		auth.validateSessionFn = func(context.Context, int64) (*model.User, error) {
			return nil, errors.New("db down")
		}

		_, err := svc.Submit(ctx, params)

		Expect(err).To(MatchError(ContainSubstring("db down")))
	})

	It("does not queue a report that failed to store", func() {
		feedback.createFn = func(context.Context, *model.FeedbackReport) error {
			return errors.New("unique violation")
		}

		_, err := svc.Submit(ctx, params)

		Expect(err).To(MatchError(ContainSubstring("unique violation")))
		Expect(producer.tasks).To(BeEmpty())
	})

	It("still accepts the report when it cannot be queued", func() {
		producer.enqueueFn = func(context.Context, queue.Task) error {
			return errors.New("redis unavailable")
		}

		result, err := svc.Submit(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Enqueued).To(BeFalse())
		Expect(feedback.created).To(HaveLen(1))
	})
})

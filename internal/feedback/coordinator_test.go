package feedback_test

import (
	"context"
	"encoding/base64"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"beacon.app/feedback/internal/feedback"
	"beacon.app/feedback/internal/model"
)

func testCapture() *model.ScreenCapture {
	return &model.ScreenCapture{
		Data:   []byte{0x89, 'P', 'N', 'G', 0x01, 0x02},
		Format: model.ImageFormatPNG,
		Width:  2,
		Height: 1,
	}
}

var _ = Describe("Coordinator", func() {
	var (
		ctx         context.Context
		view        *mockView
		errs        *mockErrorDisplay
		permissions *mockPermissionGate
		sessions    *mockSessionGate
		submitter   *mockSubmitter
		captures    *mockCaptureSource
		deps        feedback.Dependencies
		c           feedback.Coordinator
	)

	BeforeEach(func() {
		ctx = context.Background()
		view = &mockView{}
		errs = &mockErrorDisplay{}
		permissions = &mockPermissionGate{granted: true}
		sessions = &mockSessionGate{config: &model.AppConfig{ForceAuth: false}}
		submitter = &mockSubmitter{}
		captures = &mockCaptureSource{}
		deps = feedback.Dependencies{
			View:        view,
			Errors:      errs,
			Permissions: permissions,
			Sessions:    sessions,
			Submitter:   submitter,
			Captures:    captures,
			SessionID:   42,
		}
	})

	JustBeforeEach(func() {
		c = feedback.New(deps)
	})

	Describe("SetClassification", func() {
		It("stores the kind and highlights the selected control", func() {
			c.SetClassification(model.KindBug)

			Expect(c.Record().Kind).To(Equal(model.KindBug))
			Expect(view.Calls()).To(Equal([]string{"SetClassificationSelected"}))
			Expect(view.kinds).To(Equal([]model.Kind{model.KindBug}))
			Expect(c.State()).To(Equal(feedback.StateComposing))
		})

		It("ignores unknown kinds", func() {
			c.SetClassification(model.Kind("praise"))

			Expect(c.Record().Kind).To(BeEmpty())
			Expect(view.Calls()).To(BeEmpty())
			Expect(c.State()).To(Equal(feedback.StateIdle))
		})
	})

	Describe("ToggleCaptureAttachment", func() {
		It("shows the capture affordance when enabled", func() {
			c.ToggleCaptureAttachment(true)

			Expect(c.Record().AttachCapture).To(BeTrue())
			Expect(view.Calls()).To(Equal([]string{"ShowCaptureAffordance"}))
		})

		It("hides the capture affordance when disabled", func() {
			c.ToggleCaptureAttachment(false)

			Expect(c.Record().AttachCapture).To(BeFalse())
			Expect(view.Calls()).To(Equal([]string{"HideCaptureAffordance"}))
		})
	})

	Describe("SetScreenCapture", func() {
		It("replaces the capture and enables the capture switch", func() {
			c.SetScreenCapture(testCapture())

			Expect(view.Calls()).To(Equal([]string{"ShowCaptureAffordance", "SetCaptureEnabled(true)"}))
			Expect(c.Record().AttachCapture).To(BeFalse())
		})

		It("ignores a nil image", func() {
			c.SetScreenCapture(nil)

			Expect(view.Calls()).To(BeEmpty())
			Expect(c.State()).To(Equal(feedback.StateIdle))
		})

		It("ignores an image without pixels", func() {
			c.SetScreenCapture(&model.ScreenCapture{Data: []byte{1}, Width: 0, Height: 0})

			Expect(view.Calls()).To(BeEmpty())
		})
	})

	Describe("Submit", func() {
		Context("when no permission gate is configured", func() {
			BeforeEach(func() {
				deps.Permissions = nil
			})

			It("returns a configuration error without sending or alerting", func() {
				err := c.Submit(ctx, "hello", "home")

				Expect(err).To(MatchError(feedback.ErrPermissionGateMissing))
				Expect(submitter.Submissions()).To(BeEmpty())
				Expect(errs.Errors()).To(BeEmpty())
				Expect(view.Calls()).To(BeEmpty())
			})
		})

		Context("when permission is granted and auth is not forced", func() {
			It("sends the message with the captured image and the default kind", func() {
				img := testCapture()
				c.ToggleCaptureAttachment(true)
				c.SetScreenCapture(img)

				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				subs := submitter.Submissions()
				Expect(subs).To(HaveLen(1))
				Expect(subs[0].Message).To(Equal("hello"))
				Expect(subs[0].Screen).To(Equal("home"))
				Expect(subs[0].Kind).To(Equal(model.KindFeedback))
				Expect(subs[0].Capture).To(Equal(img))
				Expect(subs[0].Capture.Base64()).To(Equal(base64.StdEncoding.EncodeToString(img.Data)))
				Expect(c.State()).To(Equal(feedback.StateSubmitting))
				Expect(permissions.RequestCalls()).To(BeZero())
			})

			It("sends the selected kind", func() {
				c.SetClassification(model.KindBug)

				Expect(c.Submit(ctx, "it crashed", "settings")).To(Succeed())

				subs := submitter.Submissions()
				Expect(subs).To(HaveLen(1))
				Expect(subs[0].Kind).To(Equal(model.KindBug))
				Expect(subs[0].Message).To(Equal("it crashed"))
			})
		})

		DescribeTable("capture is attached only when the last toggle enabled it",
			func(steps []string, wantCapture bool) {
				img := testCapture()
				for _, step := range steps {
					switch step {
					case "on":
						c.ToggleCaptureAttachment(true)
					case "off":
						c.ToggleCaptureAttachment(false)
					case "capture":
						c.SetScreenCapture(img)
					}
				}

				Expect(c.Submit(ctx, "msg", "screen")).To(Succeed())

				subs := submitter.Submissions()
				Expect(subs).To(HaveLen(1))
				if wantCapture {
					Expect(subs[0].Capture).To(Equal(img))
				} else {
					Expect(subs[0].Capture).To(BeNil())
				}
			},
			Entry("no toggle, capture set", []string{"capture"}, false),
			Entry("toggle on, no capture", []string{"on"}, false),
			Entry("toggle on then capture", []string{"on", "capture"}, true),
			Entry("capture then toggle on", []string{"capture", "on"}, true),
			Entry("toggle on, capture, toggle off", []string{"on", "capture", "off"}, false),
			Entry("toggle off then on with capture", []string{"capture", "off", "on"}, true),
			Entry("toggle on, off, on, capture, off", []string{"on", "off", "on", "capture", "off"}, false),
		)

		It("clears a previously attached capture when the toggle is switched off before resending", func() {
			img := testCapture()
			c.ToggleCaptureAttachment(true)
			c.SetScreenCapture(img)
			Expect(c.Submit(ctx, "first", "home")).To(Succeed())
			submitter.Complete(0, nil, errors.New("offline"))

			c.ToggleCaptureAttachment(false)
			Expect(c.Submit(ctx, "second", "home")).To(Succeed())

			subs := submitter.Submissions()
			Expect(subs).To(HaveLen(2))
			Expect(subs[1].Capture).To(BeNil())
			Expect(c.Record().Capture).To(BeNil())
		})

		Context("when permission is not granted", func() {
			BeforeEach(func() {
				permissions.granted = false
			})

			It("requests permission once and sends only after it is granted", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				Expect(permissions.RequestCalls()).To(Equal(1))
				Expect(submitter.Submissions()).To(BeEmpty())
				Expect(c.State()).To(Equal(feedback.StateAwaitingPermission))

				permissions.Answer(true)

				Expect(submitter.Submissions()).To(HaveLen(1))
				Expect(submitter.Submissions()[0].Message).To(Equal("hello"))
				Expect(permissions.RequestCalls()).To(Equal(1))
			})

			It("never sends when permission is denied", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
				permissions.Answer(false)

				Expect(submitter.Submissions()).To(BeEmpty())
				Expect(errs.Errors()).To(BeEmpty())
				Expect(view.Calls()).To(BeEmpty())
				Expect(c.State()).To(Equal(feedback.StateComposing))
				Expect(c.Record().Message).To(Equal("hello"))
			})

			It("lets a new submit supersede an unanswered request", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				Expect(c.Submit(ctx, "again", "home")).To(Succeed())
				Expect(permissions.RequestCalls()).To(Equal(2))

				permissions.Answer(true)
				Expect(submitter.Submissions()).To(BeEmpty())
				Expect(c.State()).To(Equal(feedback.StateAwaitingPermission))

				permissions.Answer(true)
				Expect(submitter.Submissions()).To(HaveLen(1))
				Expect(submitter.Submissions()[0].Message).To(Equal("again"))
			})

			It("ignores a late denial of a superseded request", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
				Expect(c.Submit(ctx, "again", "home")).To(Succeed())

				permissions.Answer(false)

				Expect(c.State()).To(Equal(feedback.StateAwaitingPermission))
			})

			It("allows a new submit after a denial", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
				permissions.Answer(false)

				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
				Expect(permissions.RequestCalls()).To(Equal(2))
			})

			It("still runs the session gate after the grant", func() {
				sessions.config = &model.AppConfig{ForceAuth: true}

				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
				permissions.Answer(true)

				Expect(view.Count("RequestLogin")).To(Equal(1))
				Expect(submitter.Submissions()).To(BeEmpty())
			})

			It("drops a grant that arrives after cancel", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
				c.Cancel()
				permissions.Answer(true)

				Expect(submitter.Submissions()).To(BeEmpty())
				Expect(c.State()).To(Equal(feedback.StateIdle))
			})

			It("resumes when the gate answers from another goroutine", func() {
				permissions.requestFn = func(_ context.Context, _ model.Permission, onResult func(bool)) {
					go onResult(true)
				}

				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				Eventually(submitter.Submissions).Should(HaveLen(1))
			})
		})

		Context("when the app forces auth", func() {
			BeforeEach(func() {
				sessions.config = &model.AppConfig{ForceAuth: true}
			})

			It("asks for login exactly once and does not send without a session", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				Expect(view.Count("RequestLogin")).To(Equal(1))
				Expect(submitter.Submissions()).To(BeEmpty())
				Expect(c.State()).To(Equal(feedback.StateAwaitingLogin))
			})

			It("sends on a fresh submit once the user has logged in", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
				sessions.activeSession = true

				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				Expect(view.Count("RequestLogin")).To(Equal(1))
				Expect(submitter.Submissions()).To(HaveLen(1))
			})

			It("sends when a session already exists", func() {
				sessions.activeSession = true

				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				Expect(view.Count("RequestLogin")).To(BeZero())
				Expect(submitter.Submissions()).To(HaveLen(1))
			})
		})

		Context("when no app config has been loaded", func() {
			BeforeEach(func() {
				sessions.config = nil
				sessions.activeSession = true
			})

			It("requires login", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				Expect(view.Count("RequestLogin")).To(Equal(1))
				Expect(submitter.Submissions()).To(BeEmpty())
			})
		})

		Context("when no submission client is configured", func() {
			BeforeEach(func() {
				deps.Submitter = nil
			})

			It("stays on the compose screen", func() {
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

				Expect(c.State()).To(Equal(feedback.StateComposing))
				Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
			})
		})

		It("rejects a second submit while one is in flight", func() {
			Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

			Expect(c.Submit(ctx, "hello", "home")).To(MatchError(feedback.ErrSubmissionInProgress))
			Expect(submitter.Submissions()).To(HaveLen(1))
		})
	})

	Describe("submission outcome", func() {
		It("clears the screen and dismisses on success", func() {
			c.ToggleCaptureAttachment(true)
			c.SetScreenCapture(testCapture())
			Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

			submitter.Complete(0, &model.FeedbackResult{ID: 7, Status: true}, nil)

			Expect(view.Count("ClearScreenData")).To(Equal(1))
			Expect(view.Count("Dismiss")).To(Equal(1))
			Expect(c.State()).To(Equal(feedback.StateIdle))
			Expect(c.Record()).To(Equal(model.Feedback{}))

			capture, err := c.ScreenCapture(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(capture).To(BeNil())
			Expect(captures.calls).To(Equal(1))
		})

		It("shows the error and keeps the record for a retry", func() {
			img := testCapture()
			c.SetClassification(model.KindBug)
			c.ToggleCaptureAttachment(true)
			c.SetScreenCapture(img)
			Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

			sendErr := errors.New("server unavailable")
			submitter.Complete(0, nil, sendErr)

			Expect(errs.Errors()).To(ConsistOf(sendErr))
			Expect(view.Count("Dismiss")).To(BeZero())
			Expect(c.State()).To(Equal(feedback.StateIdle))
			Expect(c.Record().Message).To(Equal("hello"))
			Expect(c.Record().Capture).To(Equal(img))

			Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
			subs := submitter.Submissions()
			Expect(subs).To(HaveLen(2))
			Expect(subs[1]).To(Equal(subs[0]))
		})

		It("ignores a success that arrives after cancel", func() {
			Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
			c.Cancel()

			submitter.Complete(0, &model.FeedbackResult{ID: 7, Status: true}, nil)

			Expect(view.Count("ClearScreenData")).To(Equal(1))
			Expect(view.Count("Dismiss")).To(Equal(1))
			Expect(c.State()).To(Equal(feedback.StateIdle))
		})

		It("ignores an error that arrives after cancel", func() {
			Expect(c.Submit(ctx, "hello", "home")).To(Succeed())
			c.Cancel()

			submitter.Complete(0, nil, errors.New("timeout"))

			Expect(errs.Errors()).To(BeEmpty())
		})

		It("ignores a stale result once a newer attempt has started", func() {
			Expect(c.Submit(ctx, "first", "home")).To(Succeed())
			c.Cancel()
			Expect(c.Submit(ctx, "second", "home")).To(Succeed())

			submitter.Complete(0, &model.FeedbackResult{ID: 1, Status: true}, nil)

			Expect(c.State()).To(Equal(feedback.StateSubmitting))
			Expect(c.Record().Message).To(Equal("second"))

			submitter.Complete(1, &model.FeedbackResult{ID: 2, Status: true}, nil)

			Expect(c.State()).To(Equal(feedback.StateIdle))
			Expect(view.Count("Dismiss")).To(Equal(2))
		})

		It("handles a result delivered from another goroutine", func() {
			submitter.submitFn = func(_ context.Context, _ model.Submission, onResult func(*model.FeedbackResult, error)) {
				go onResult(&model.FeedbackResult{ID: 9, Status: true}, nil)
			}

			Expect(c.Submit(ctx, "hello", "home")).To(Succeed())

			Eventually(func() int { return view.Count("Dismiss") }).Should(Equal(1))
			Eventually(c.State).Should(Equal(feedback.StateIdle))
		})
	})

	Describe("Cancel", func() {
		It("leaves the dispatched post running when the caller's context ends", func() {
			var dispatched context.Context
			submitter.submitFn = func(ctx context.Context, _ model.Submission, _ func(*model.FeedbackResult, error)) {
				dispatched = ctx
			}
			callerCtx, cancel := context.WithCancel(ctx)

			Expect(c.Submit(callerCtx, "hello", "home")).To(Succeed())
			cancel()
			c.Cancel()

			Expect(dispatched).NotTo(BeNil())
			Expect(dispatched.Err()).NotTo(HaveOccurred())
		})

		It("clears the record, dismisses the screen and returns to idle", func() {
			c.SetClassification(model.KindBug)
			c.ToggleCaptureAttachment(true)
			c.SetScreenCapture(testCapture())

			c.Cancel()

			Expect(c.Record()).To(Equal(model.Feedback{}))
			Expect(c.State()).To(Equal(feedback.StateIdle))
			calls := view.Calls()
			Expect(calls[len(calls)-2:]).To(Equal([]string{"ClearScreenData", "Dismiss"}))
		})
	})

	Describe("InitUI", func() {
		It("switches the capture off when there is no capture", func() {
			c.InitUI()

			Expect(view.Calls()).To(Equal([]string{"SetCaptureEnabled(false)"}))
		})

		It("shows the capture and its preview when one exists", func() {
			c.SetScreenCapture(testCapture())
			view.calls = nil

			c.InitUI()

			Expect(view.Calls()).To(Equal([]string{
				"ShowCaptureAffordance",
				"ShowCapturePreview",
				"SetCaptureEnabled(true)",
			}))
		})
	})

	Describe("ScreenCapture", func() {
		It("takes a capture from the source only once", func() {
			img := testCapture()
			captures.captureFn = func(_ context.Context) (*model.ScreenCapture, error) {
				return img, nil
			}

			first, err := c.ScreenCapture(ctx)
			Expect(err).NotTo(HaveOccurred())
			second, err := c.ScreenCapture(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(first).To(Equal(img))
			Expect(second).To(BeIdenticalTo(first))
			Expect(captures.calls).To(Equal(1))
		})

		It("returns the capture set by the user without asking the source", func() {
			img := testCapture()
			c.SetScreenCapture(img)

			got, err := c.ScreenCapture(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeIdenticalTo(img))
			Expect(captures.calls).To(BeZero())
		})

		It("wraps source errors", func() {
			captures.captureFn = func(_ context.Context) (*model.ScreenCapture, error) {
				return nil, errors.New("no display")
			}

			_, err := c.ScreenCapture(ctx)

			Expect(err).To(MatchError(ContainSubstring("no display")))
		})

		Context("without a capture source", func() {
			BeforeEach(func() {
				deps.Captures = nil
			})

			It("returns ErrNoCaptureSource", func() {
				_, err := c.ScreenCapture(ctx)

				Expect(err).To(MatchError(feedback.ErrNoCaptureSource))
			})
		})
	})

	Describe("preview and send actions", func() {
		It("opens the capture preview", func() {
			c.OpenCapturePreview()

			Expect(view.Calls()).To(Equal([]string{"ShowCapturePreview"}))
		})

		It("collects the edited capture before hiding the preview", func() {
			c.ConfirmCaptureEdit()

			Expect(view.Calls()).To(Equal([]string{"PromptCaptureEdit", "HideCapturePreview"}))
		})

		It("asks the view for the user's input on send", func() {
			c.RequestSend()

			Expect(view.Calls()).To(Equal([]string{"CollectInput"}))
		})
	})
})

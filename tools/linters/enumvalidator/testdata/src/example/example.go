package example

type Kind string

const (
	KindFeedback Kind = "feedback"
	KindBug      Kind = "bug"
)

type ReportStatus string

const (
	ReportStatusReceived ReportStatus = "received"
)

type Report struct {
	Kind   Kind
	Status ReportStatus
}

func bad() {
	r := &Report{}
	r.Kind = "crash"    // want "enum field Kind assigned string literal"
	r.Status = "queued" // want "enum field Status assigned string literal"

	_ = Report{Kind: "bug"} // want "enum field Kind assigned string literal"
}

func good() {
	r := &Report{}
	r.Kind = KindBug
	r.Status = ReportStatusReceived

	_ = Report{Kind: KindFeedback}
}

func alsoGood() {
	// a variable, not a literal
	kind := KindBug
	r := &Report{Kind: kind}
	_ = r
}

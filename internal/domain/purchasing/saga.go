package purchasing

// Step names a unit of work inside a processor call
type Step string

const (
	StepValidate       Step = "validate"
	StepWriteItems     Step = "write_items"
	StepStockMovement  Step = "stock_movement"
	StepWriteStatus    Step = "write_status"
	StepJournalPost    Step = "journal_post"
	StepJournalLink    Step = "journal_link"
	StepWriteReturn    Step = "write_return"
	StepWritePayment   Step = "write_payment"
	StepTimelineAppend Step = "timeline_append"
	StepInvalidate     Step = "cache_invalidate"
)

// StepStatus is the outcome of a step
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepOutcome records one step of a processor call. Subject identifies what the
// step acted on (an item id, a payment id) when a step runs more than once.
type StepOutcome struct {
	Step    Step
	Subject string
	Status  StepStatus
	Err     error
}

// Saga collects step outcomes. Best-effort steps that fail are recorded here
// instead of aborting the call, so the caller can schedule compensation.
type Saga struct {
	Steps []StepOutcome
}

// Succeeded records a successful step
func (s *Saga) Succeeded(step Step, subject string) {
	s.Steps = append(s.Steps, StepOutcome{Step: step, Subject: subject, Status: StepSucceeded})
}

// Failed records a failed step
func (s *Saga) Failed(step Step, subject string, err error) {
	s.Steps = append(s.Steps, StepOutcome{Step: step, Subject: subject, Status: StepFailed, Err: err})
}

// Skipped records a step that had nothing to do
func (s *Saga) Skipped(step Step, subject string) {
	s.Steps = append(s.Steps, StepOutcome{Step: step, Subject: subject, Status: StepSkipped})
}

// HasFailures returns true if any step failed
func (s *Saga) HasFailures() bool {
	for _, o := range s.Steps {
		if o.Status == StepFailed {
			return true
		}
	}
	return false
}

// FailedSteps returns the failed outcomes in order
func (s *Saga) FailedSteps() []StepOutcome {
	var failed []StepOutcome
	for _, o := range s.Steps {
		if o.Status == StepFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Outcome returns the first outcome recorded for step, if any
func (s *Saga) Outcome(step Step) (StepOutcome, bool) {
	for _, o := range s.Steps {
		if o.Step == step {
			return o, true
		}
	}
	return StepOutcome{}, false
}

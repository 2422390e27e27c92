package assay

import (
	"sync"
)

// AnswerGate tracks outstanding questions for a run. Blocking questions
// suspend the orchestrator; helpful (non-blocking) questions can be answered
// out of band through Submit without stalling the stage. The gate never
// blocks a goroutine waiting for an answer: the durable record of open
// questions lives in PipelineState, and "waiting" is the orchestrator
// returning control with a checkpoint in place.
type AnswerGate struct {
	mutex    sync.Mutex
	closed   bool
	pending  map[string]Question
	buffered map[string]string
	order    []string
}

// NewAnswerGate creates an empty gate.
func NewAnswerGate() *AnswerGate {
	return &AnswerGate{
		pending:  map[string]Question{},
		buffered: map[string]string{},
	}
}

// Seed loads the gate from state, replacing any prior contents. Used when
// resuming from a checkpoint.
func (g *AnswerGate) Seed(state PipelineState) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.closed = false
	g.pending = make(map[string]Question, len(state.PendingQuestions))
	for _, q := range state.PendingQuestions {
		g.pending[q.ID] = q
	}
}

// Raise registers a newly emitted question.
func (g *AnswerGate) Raise(q Question) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.pending[q.ID] = q
}

// Submit buffers an out-of-band answer for a pending question. Duplicate
// submissions for the same question are allowed: last write wins by arrival
// order. Answers for unknown questions, or arriving after the drain cutoff,
// fail with *StaleAnswerError.
func (g *AnswerGate) Submit(questionID, answer string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.closed {
		return &StaleAnswerError{QuestionID: questionID}
	}
	if _, ok := g.pending[questionID]; !ok {
		return &StaleAnswerError{QuestionID: questionID}
	}
	if _, buffered := g.buffered[questionID]; !buffered {
		g.order = append(g.order, questionID)
	}
	g.buffered[questionID] = answer
	return nil
}

// Resolve marks a question answered, removing it from the gate.
func (g *AnswerGate) Resolve(questionID string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.pending, questionID)
	delete(g.buffered, questionID)
}

// Drain returns buffered answers in submission order, clears the buffer, and
// closes the gate. The orchestrator calls this exactly once per cutoff (the
// start of verdict synthesis); any Submit after the cutoff is rejected with
// *StaleAnswerError, even for questions still pending.
func (g *AnswerGate) Drain() []AnswerSubmission {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.closed = true
	var drained []AnswerSubmission
	for _, id := range g.order {
		if answer, ok := g.buffered[id]; ok {
			drained = append(drained, AnswerSubmission{QuestionID: id, Answer: answer})
		}
	}
	g.buffered = map[string]string{}
	g.order = nil
	return drained
}

// IsPending reports whether a question is still open.
func (g *AnswerGate) IsPending(questionID string) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	_, ok := g.pending[questionID]
	return ok
}

// AnswerSubmission pairs a question with its submitted answer text.
type AnswerSubmission struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

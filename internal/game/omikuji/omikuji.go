// Package omikuji implements the weighted fortune draw.
package omikuji

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

const (
	// DefaultBonusLabel is the outcome that pays the bonus credit.
	DefaultBonusLabel = "大凶"

	// DefaultBonusReward is the credit granted for DefaultBonusLabel.
	DefaultBonusReward = 10000

	// RequiredTotalWeight is the weight sum every outcome table should have,
	// so that a weight reads directly as a percentage.
	RequiredTotalWeight = 100
)

// Outcome is one labeled fortune with its selection weight.
type Outcome struct {
	Label  string
	Weight int
}

// DefaultOutcomes returns the standard outcome table, best to worst.
func DefaultOutcomes() []Outcome {
	return []Outcome{
		{Label: "大吉", Weight: 10},
		{Label: "中吉", Weight: 20},
		{Label: "小吉", Weight: 30},
		{Label: "末吉", Weight: 25},
		{Label: "凶", Weight: 10},
		{Label: "大凶", Weight: 5},
	}
}

// DefaultMessages returns the standard flavor phrases.
func DefaultMessages() []string {
	return []string{
		"春待つ心、今ぞ芽吹く",
		"水面に映る月、掴めぬは夢",
		"千里の道も一歩より始まる",
		"灯火は小さくとも闇を照らす",
		"鶴の声、遠く幸を告げる",
		"雲の切れ間に射す光あり",
		"落ち葉の舞いもまた道を示す",
		"石の上にも三年、忍ぶは力",
		"朝日昇れば、影は退く",
		"雨のち晴れ、また雨のち晴れ",
		"花は散れども、香りは残る",
		"行雲流水、心のままに",
	}
}

// Errors for outcome table validation
var (
	ErrNoOutcomes        = errors.New("outcome table is empty")
	ErrInvalidWeight     = errors.New("outcome weight must be positive")
	ErrEmptyLabel        = errors.New("outcome label must not be empty")
	ErrDuplicateLabel    = errors.New("outcome label is duplicated")
	ErrWeightSum         = errors.New("outcome weights must sum to 100")
	ErrUnknownBonusLabel = errors.New("bonus label is not in the outcome table")
	ErrNothingToDraw     = errors.New("no outcome has a positive weight")
)

// Config holds configuration for the selector.
// Zero values fall back to the defaults above.
type Config struct {
	Outcomes    []Outcome
	Messages    []string
	BonusLabel  string
	BonusReward int64
}

// Selector draws outcomes and flavor messages.
// It is safe for concurrent use.
type Selector struct {
	outcomes    []Outcome
	total       int
	messages    []string
	bonusLabel  string
	bonusReward int64

	mu  sync.Mutex
	rng *rand.Rand // nil means the package-level source
}

// New creates a Selector with the given configuration.
// Outcomes with a non-positive weight are never drawn.
func New(cfg *Config) *Selector {
	outcomes := DefaultOutcomes()
	messages := DefaultMessages()
	bonusLabel := DefaultBonusLabel
	bonusReward := int64(DefaultBonusReward)

	if cfg != nil {
		if len(cfg.Outcomes) > 0 {
			outcomes = append([]Outcome(nil), cfg.Outcomes...)
		}
		if len(cfg.Messages) > 0 {
			messages = append([]string(nil), cfg.Messages...)
		}
		if cfg.BonusLabel != "" {
			bonusLabel = cfg.BonusLabel
		}
		if cfg.BonusReward > 0 {
			bonusReward = cfg.BonusReward
		}
	}

	total := 0
	for _, o := range outcomes {
		if o.Weight > 0 {
			total += o.Weight
		}
	}

	return &Selector{
		outcomes:    outcomes,
		total:       total,
		messages:    messages,
		bonusLabel:  bonusLabel,
		bonusReward: bonusReward,
	}
}

// WithRand makes the selector draw from r. Intended for reproducible tests.
func (s *Selector) WithRand(r *rand.Rand) *Selector {
	s.mu.Lock()
	s.rng = r
	s.mu.Unlock()
	return s
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng == nil {
		return rand.Intn(n)
	}
	return s.rng.Intn(n)
}

// DrawOutcome picks one label with probability weight/total.
// Each call is an independent trial over [0, total). It returns "" when no
// outcome has a positive weight.
func (s *Selector) DrawOutcome() string {
	if s.total <= 0 {
		return ""
	}
	return s.Pick(s.intn(s.total))
}

// Pick maps a roll in [0, total) onto the cumulative weight table.
// Rolls outside the range clamp to the first or last drawable outcome.
func (s *Selector) Pick(roll int) string {
	last := ""
	cumulative := 0
	for _, o := range s.outcomes {
		if o.Weight <= 0 {
			continue
		}
		cumulative += o.Weight
		last = o.Label
		if roll < cumulative {
			return o.Label
		}
	}
	return last
}

// DrawMessage picks one flavor message uniformly at random.
func (s *Selector) DrawMessage() string {
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[s.intn(len(s.messages))]
}

// RewardFor returns the bonus credit for label: the configured reward for
// the bonus label, 0 for everything else.
func (s *Selector) RewardFor(label string) int64 {
	if label == s.bonusLabel {
		return s.bonusReward
	}
	return 0
}

// BonusLabel returns the label that pays a bonus.
func (s *Selector) BonusLabel() string {
	return s.bonusLabel
}

// Labels returns the outcome labels in table order.
func (s *Selector) Labels() []string {
	labels := make([]string, len(s.outcomes))
	for i, o := range s.outcomes {
		labels[i] = o.Label
	}
	return labels
}

// Outcomes returns a copy of the outcome table.
func (s *Selector) Outcomes() []Outcome {
	return append([]Outcome(nil), s.outcomes...)
}

// TotalWeight returns the sum of all drawable weights.
func (s *Selector) TotalWeight() int {
	return s.total
}

// Validate checks the selector's table against the configuration invariants.
func (s *Selector) Validate() error {
	return Validate(s.outcomes, s.bonusLabel)
}

// Validate checks an outcome table: non-empty, unique non-empty labels,
// positive weights summing to RequiredTotalWeight, and a bonus label that
// appears in the table.
func Validate(outcomes []Outcome, bonusLabel string) error {
	if len(outcomes) == 0 {
		return ErrNoOutcomes
	}

	seen := make(map[string]bool, len(outcomes))
	total := 0
	for _, o := range outcomes {
		if o.Label == "" {
			return ErrEmptyLabel
		}
		if seen[o.Label] {
			return fmt.Errorf("%w: %s", ErrDuplicateLabel, o.Label)
		}
		seen[o.Label] = true
		if o.Weight <= 0 {
			return fmt.Errorf("%w: %s has weight %d", ErrInvalidWeight, o.Label, o.Weight)
		}
		total += o.Weight
	}

	if total != RequiredTotalWeight {
		return fmt.Errorf("%w: got %d", ErrWeightSum, total)
	}
	if !seen[bonusLabel] {
		return fmt.Errorf("%w: %s", ErrUnknownBonusLabel, bonusLabel)
	}
	return nil
}

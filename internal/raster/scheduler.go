// Package raster implements the raster interrupt scheduler. It validates
// that the handlers of a chain form a single cycle in which every handler
// arms its successor and lowers each handler into cycle counted code.
package raster

import (
	"fmt"
	"sort"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrogolib/log"
)

// Options configures the scheduler of a chain.
type Options struct {
	Name   string // chain name used in errors
	Prefix string // label prefix of the handlers
	Timing c64.Timing
	Vector Vector
	// FrameCounter is the symbol of a 16 bit counter that the entry handler
	// increments, empty disables counting.
	FrameCounter string
	Labels       *emit.Labels
}

// Scheduler holds the handlers of a chain in an arena indexed by slot.
type Scheduler struct {
	logger *log.Logger
	opts   Options

	handlers []HandlerConfig
	slots    map[int]int // slot to arena index
}

// Chain is a finalized chain, the handlers are in execution order starting
// with the entry handler.
type Chain struct {
	Name     string
	Entry    string
	Trigger  uint16
	Vector   Vector
	Handlers []Handler
}

// New returns a scheduler for one chain.
func New(logger *log.Logger, opts Options) *Scheduler {
	if opts.Labels == nil {
		opts.Labels = emit.NewLabels(opts.Prefix)
	}
	return &Scheduler{
		logger: logger,
		opts:   opts,
		slots:  map[int]int{},
	}
}

// AddHandler validates the trigger and re-arm lines of a handler and adds it
// to the chain. The chain is checked for completeness by Finalize.
func (s *Scheduler) AddHandler(cfg HandlerConfig) error {
	maxLine := s.opts.Timing.MaxLine()
	if cfg.Slot < 1 {
		return fmt.Errorf("chain '%s': invalid handler slot %d", s.opts.Name, cfg.Slot)
	}
	if cfg.Trigger > maxLine {
		return s.triggerError(cfg.Slot, cfg.Trigger, "")
	}
	if cfg.ReArm != nil && *cfg.ReArm > maxLine {
		return s.triggerError(cfg.Slot, *cfg.ReArm, "")
	}
	if cfg.Interval != nil && cfg.Interval.Frames == 0 {
		return fmt.Errorf("chain '%s' slot %d: interval of 0 frames", s.opts.Name, cfg.Slot)
	}
	if cfg.Stabilize {
		if err := s.checkStabilize(cfg); err != nil {
			return err
		}
	}
	if cfg.Ticks > 1 {
		if err := s.checkTicks(cfg); err != nil {
			return err
		}
	}
	if index, ok := s.slots[cfg.Slot]; ok {
		return &DuplicateArmError{
			Chain: s.opts.Name,
			Slot:  cfg.Slot,
			By:    []int{s.handlers[index].Slot, cfg.Slot},
			Line:  int(cfg.Trigger),
		}
	}

	s.slots[cfg.Slot] = len(s.handlers)
	s.handlers = append(s.handlers, cfg)
	return nil
}

func (s *Scheduler) checkStabilize(cfg HandlerConfig) error {
	switch {
	case s.opts.Vector != HardwareVector:
		return s.triggerError(cfg.Slot, cfg.Trigger, "stabilization requires the hardware interrupt vector")
	case cfg.Trigger&0xff == 0xff || cfg.Trigger+2 > s.opts.Timing.MaxLine():
		return s.triggerError(cfg.Slot, cfg.Trigger, "stabilization needs the two following lines without wrap around")
	case c64.IsBadLine(cfg.Trigger) || c64.IsBadLine(cfg.Trigger+1):
		return s.triggerError(cfg.Slot, cfg.Trigger, "stabilization can not start on a bad line")
	}
	return nil
}

func (s *Scheduler) checkTicks(cfg HandlerConfig) error {
	switch {
	case !cfg.Timer:
		return fmt.Errorf("chain '%s' slot %d: %d ticks need a timer", s.opts.Name, cfg.Slot, cfg.Ticks)
	case cfg.ReArmDelta == 0 || cfg.ReArmDelta >= s.opts.Timing.Lines:
		return s.triggerError(cfg.Slot, cfg.Trigger,
			fmt.Sprintf("ticks need a timer delta of 1-%d lines", s.opts.Timing.MaxLine()))
	case cfg.Stabilize:
		return s.triggerError(cfg.Slot, cfg.Trigger, "a handler with ticks can not be stabilized")
	}
	return nil
}

func (s *Scheduler) triggerError(slot int, line uint16, reason string) error {
	return &InvalidTriggerError{
		Chain:  s.opts.Name,
		Slot:   slot,
		Line:   int(line),
		Max:    int(s.opts.Timing.MaxLine()),
		Reason: reason,
	}
}

// Len returns the number of declared handlers.
func (s *Scheduler) Len() int {
	return len(s.handlers)
}

// Finalize verifies that the handlers form a single cycle, that every
// handler arms the trigger of its successor and that every handler finishes
// before the next trigger. It returns the lowered handlers in chain order.
func (s *Scheduler) Finalize() (*Chain, error) {
	if len(s.handlers) == 0 {
		return nil, fmt.Errorf("chain '%s' has no handlers", s.opts.Name)
	}

	order := s.sortedSlots()
	next, err := s.successors(order)
	if err != nil {
		return nil, err
	}
	if err := s.checkPredecessors(order, next); err != nil {
		return nil, err
	}
	cycle, err := s.checkCycle(order, next)
	if err != nil {
		return nil, err
	}
	if err := s.checkReArm(order, next); err != nil {
		return nil, err
	}
	if err := s.checkSharedTriggers(order); err != nil {
		return nil, err
	}
	if err := s.checkTickSpacing(order, next); err != nil {
		return nil, err
	}
	if err := s.checkHandoffs(order, next); err != nil {
		return nil, err
	}
	cycle = s.rotateToEntry(cycle)

	entry := s.handler(cycle[0])
	chain := &Chain{
		Name:    s.opts.Name,
		Entry:   HandlerLabel(s.opts.Prefix, entry.Slot),
		Trigger: entry.Trigger,
		Vector:  s.opts.Vector,
	}
	for i, slot := range cycle {
		cfg := s.handler(slot)
		successor := s.handler(next[slot])
		chain.Handlers = append(chain.Handlers, s.lower(cfg, successor, i == 0, s.handsOff(cfg, successor)))
	}
	if err := s.checkDeadlines(chain.Handlers, next); err != nil {
		return nil, err
	}

	for _, handler := range chain.Handlers {
		s.logger.Debug("Lowered interrupt handler",
			log.String("chain", s.opts.Name),
			log.Int("slot", handler.Slot),
			log.Hex("trigger", handler.Trigger),
			log.Int("ticks", len(handler.Lines)),
			log.Int("cycles", handler.Cost),
			log.Int("budget", handler.Budget))
	}
	return chain, nil
}

// checkDeadlines sets the budget of every handler and verifies that it
// finishes before the next trigger fires. Handlers that hand off to their
// successor share the budget of the last handler of the hand off group.
func (s *Scheduler) checkDeadlines(handlers []Handler, next map[int]int) error {
	for i := range handlers {
		if handlers[i].Handoff {
			continue
		}
		cfg := s.handler(handlers[i].Slot)
		budget := s.tickBudget(cfg, s.handler(next[cfg.Slot]))

		first := i
		for first > 0 && handlers[first-1].Handoff {
			first--
		}
		for j := first; j <= i; j++ {
			h := &handlers[j]
			h.Budget = budget
			if h.Cost > h.Budget {
				return &DeadlineExceededError{
					Chain:  s.opts.Name,
					Slot:   h.Slot,
					Cost:   h.Cost,
					Budget: h.Budget,
				}
			}
			budget -= h.Cost
		}
	}
	return nil
}

// tickBudget returns the cycles available to the shortest tick of a
// handler.
func (s *Scheduler) tickBudget(cfg, successor *HandlerConfig) int {
	lines := cfg.tickLines(s.opts.Timing.Lines)
	budget := -1
	for i, line := range lines {
		end := successor.Trigger
		if i+1 < len(lines) {
			end = lines[i+1]
		}
		available := s.opts.Timing.AvailableCycles(line, end)
		if budget < 0 || available < budget {
			budget = available
		}
	}
	return budget
}

// handsOff returns whether the handler runs its successor directly as part
// of the same interrupt. This is the case for a successor on the same line
// with a lower priority.
func (s *Scheduler) handsOff(cfg, successor *HandlerConfig) bool {
	return successor.Slot != cfg.Slot &&
		successor.Trigger == cfg.Trigger &&
		cfg.ticks() == 1 &&
		cfg.Priority > successor.Priority
}

// rotateToEntry starts the cycle with a handler that is armed by its
// predecessor instead of being handed off to.
func (s *Scheduler) rotateToEntry(cycle []int) []int {
	for i, slot := range cycle {
		previous := cycle[(i+len(cycle)-1)%len(cycle)]
		if !s.handsOff(s.handler(previous), s.handler(slot)) {
			return append(cycle[i:len(cycle):len(cycle)], cycle[:i]...)
		}
	}
	return cycle
}

func (s *Scheduler) handler(slot int) *HandlerConfig {
	return &s.handlers[s.slots[slot]]
}

// sortedSlots returns the slots in ascending order. Slots that share a
// trigger line are reordered among their positions by descending priority.
func (s *Scheduler) sortedSlots() []int {
	order := make([]int, 0, len(s.handlers))
	for _, h := range s.handlers {
		order = append(order, h.Slot)
	}
	sort.Ints(order)

	positions := map[uint16][]int{}
	for i, slot := range order {
		trigger := s.handler(slot).Trigger
		positions[trigger] = append(positions[trigger], i)
	}
	result := make([]int, len(order))
	copy(result, order)
	for _, indexes := range positions {
		group := make([]int, len(indexes))
		for i, index := range indexes {
			group[i] = order[index]
		}
		sort.SliceStable(group, func(a, b int) bool {
			return s.handler(group[a]).Priority > s.handler(group[b]).Priority
		})
		for i, index := range indexes {
			result[index] = group[i]
		}
	}
	return result
}

// successors resolves the successor slot of every handler.
func (s *Scheduler) successors(order []int) (map[int]int, error) {
	next := make(map[int]int, len(order))
	for i, slot := range order {
		cfg := s.handler(slot)
		if cfg.Next == 0 {
			next[slot] = order[(i+1)%len(order)]
			continue
		}
		if _, ok := s.slots[cfg.Next]; !ok {
			return nil, &IncompleteChainError{
				Chain:  s.opts.Name,
				Slot:   slot,
				Reason: fmt.Sprintf("successor slot %d does not exist", cfg.Next),
			}
		}
		next[slot] = cfg.Next
	}
	return next, nil
}

func (s *Scheduler) checkPredecessors(order []int, next map[int]int) error {
	armedBy := make(map[int][]int, len(order))
	for _, slot := range order {
		armedBy[next[slot]] = append(armedBy[next[slot]], slot)
	}
	for _, slot := range order {
		if by := armedBy[slot]; len(by) > 1 {
			return &DuplicateArmError{Chain: s.opts.Name, Slot: slot, By: by, Line: -1}
		}
	}
	return nil
}

// checkCycle follows the successors from the lowest slot and returns the
// visited slots, which have to cover all handlers.
func (s *Scheduler) checkCycle(order []int, next map[int]int) ([]int, error) {
	visited := make(map[int]bool, len(order))
	var cycle []int
	for slot := order[0]; !visited[slot]; slot = next[slot] {
		visited[slot] = true
		cycle = append(cycle, slot)
	}
	if cycle[0] != next[cycle[len(cycle)-1]] {
		return nil, &IncompleteChainError{
			Chain:  s.opts.Name,
			Slot:   cycle[len(cycle)-1],
			Reason: "chain does not return to its entry handler",
		}
	}
	for _, slot := range order {
		if !visited[slot] {
			return nil, &IncompleteChainError{
				Chain:  s.opts.Name,
				Slot:   slot,
				Reason: "handler is not reachable from the entry handler",
			}
		}
	}
	return cycle, nil
}

func (s *Scheduler) checkReArm(order []int, next map[int]int) error {
	for _, slot := range order {
		cfg := s.handler(slot)
		successor := s.handler(next[slot])
		line := cfg.reArmLine(s.opts.Timing.Lines, successor.Trigger)
		if line != successor.Trigger {
			return &IncompleteChainError{
				Chain: s.opts.Name,
				Slot:  slot,
				Reason: fmt.Sprintf("re-arms line $%03x but successor slot %d triggers at $%03x",
					line, successor.Slot, successor.Trigger),
			}
		}
	}
	return nil
}

func (s *Scheduler) checkSharedTriggers(order []int) error {
	byLine := map[uint16][]int{}
	for _, slot := range order {
		cfg := s.handler(slot)
		byLine[cfg.Trigger] = append(byLine[cfg.Trigger], slot)
	}
	for _, slot := range order {
		cfg := s.handler(slot)
		for _, other := range byLine[cfg.Trigger] {
			if other != slot && s.handler(other).Priority == cfg.Priority {
				return &DuplicateArmError{
					Chain: s.opts.Name,
					Slot:  slot,
					By:    byLine[cfg.Trigger],
					Line:  int(cfg.Trigger),
				}
			}
		}
	}
	return nil
}

// checkTickSpacing verifies that all ticks of a handler fire before its
// successor.
func (s *Scheduler) checkTickSpacing(order []int, next map[int]int) error {
	for _, slot := range order {
		cfg := s.handler(slot)
		if cfg.ticks() == 1 {
			continue
		}
		successor := s.handler(next[slot])
		distance := s.opts.Timing.LinesBetween(cfg.Trigger, successor.Trigger)
		if (cfg.ticks()-1)*int(cfg.ReArmDelta) >= distance {
			return &IncompleteChainError{
				Chain: s.opts.Name,
				Slot:  slot,
				Reason: fmt.Sprintf("%d ticks every %d lines pass the trigger $%03x of successor slot %d",
					cfg.ticks(), cfg.ReArmDelta, successor.Trigger, successor.Slot),
			}
		}
	}
	return nil
}

// checkHandoffs rejects stabilized handlers that are handed off to, they
// do not start with an interrupt of their own.
func (s *Scheduler) checkHandoffs(order []int, next map[int]int) error {
	for _, slot := range order {
		cfg := s.handler(slot)
		successor := s.handler(next[slot])
		if s.handsOff(cfg, successor) && successor.Stabilize {
			return s.triggerError(successor.Slot, successor.Trigger,
				fmt.Sprintf("stabilized handler runs after slot %d on the same line", slot))
		}
	}
	return nil
}

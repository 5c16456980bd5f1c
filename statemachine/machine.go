// Package statemachine drives a set of named states. Exactly one state is
// current; a requested transition is applied at the start of the next
// Update, never in the middle of one.
package statemachine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnknownState   = errors.New("statemachine: unknown state")
	ErrDuplicateState = errors.New("statemachine: state already registered")
	ErrSelfTransition = errors.New("statemachine: transition to the current state")
	ErrTerminal       = errors.New("statemachine: terminal state reached")
	ErrNotStarted     = errors.New("statemachine: not started")
)

type StateID int

// State hooks. OnEnter and OnExit may fail; a failed hook aborts the
// transition. OnExit must be idempotent.
type State interface {
	ID() StateID
	Name() string
	OnEnter(m *Machine) error
	OnUpdate(m *Machine, dt time.Duration)
	OnExit(m *Machine) error
}

// TransitionFunc observes completed transitions.
type TransitionFunc func(from, to State)

type Machine struct {
	states   map[StateID]State
	terminal map[StateID]bool
	current  State
	pending  State
	observer []TransitionFunc
	log      *zap.Logger
}

func New(log *zap.Logger) *Machine {
	return &Machine{
		states:   make(map[StateID]State),
		terminal: make(map[StateID]bool),
		log:      log.Named("statemachine"),
	}
}

// Register adds states. Ids must be unique.
func (m *Machine) Register(states ...State) error {
	for _, s := range states {
		if _, ok := m.states[s.ID()]; ok {
			return fmt.Errorf("register %s: %w", s.Name(), ErrDuplicateState)
		}
		m.states[s.ID()] = s
	}
	return nil
}

// SetTerminal marks id as a state the machine never leaves.
func (m *Machine) SetTerminal(id StateID) {
	m.terminal[id] = true
}

// OnTransition adds an observer called after each completed transition.
func (m *Machine) OnTransition(fn TransitionFunc) {
	m.observer = append(m.observer, fn)
}

// Start enters the initial state.
func (m *Machine) Start(id StateID) error {
	s, ok := m.states[id]
	if !ok {
		return fmt.Errorf("start %d: %w", id, ErrUnknownState)
	}
	if err := s.OnEnter(m); err != nil {
		return fmt.Errorf("start %s: %w", s.Name(), err)
	}
	m.current = s
	m.log.Info("started", zap.String("state", s.Name()))
	for _, fn := range m.observer {
		fn(nil, s)
	}
	return nil
}

// Current returns the current state, or nil before Start.
func (m *Machine) Current() State {
	return m.current
}

// CurrentID returns the current state's id, or -1 before Start.
func (m *Machine) CurrentID() StateID {
	if m.current == nil {
		return -1
	}
	return m.current.ID()
}

// Pending returns the state requested for the next tick, if any.
func (m *Machine) Pending() (State, bool) {
	return m.pending, m.pending != nil
}

// RequestNextState schedules a transition for the next Update. A later
// request before that Update replaces an earlier one.
func (m *Machine) RequestNextState(id StateID) error {
	if m.current == nil {
		return ErrNotStarted
	}
	if m.terminal[m.current.ID()] {
		return fmt.Errorf("request %d from %s: %w", id, m.current.Name(), ErrTerminal)
	}
	next, ok := m.states[id]
	if !ok {
		return fmt.Errorf("request %d: %w", id, ErrUnknownState)
	}
	if next == m.current {
		return fmt.Errorf("request %s: %w", next.Name(), ErrSelfTransition)
	}
	m.pending = next
	return nil
}

// Update applies the pending transition, then ticks the current state. A
// failed transition is returned after the current state has ticked.
func (m *Machine) Update(dt time.Duration) error {
	if m.current == nil {
		return ErrNotStarted
	}
	var err error
	if m.pending != nil {
		next := m.pending
		m.pending = nil
		err = m.transition(next)
	}
	m.current.OnUpdate(m, dt)
	return err
}

func (m *Machine) transition(next State) error {
	prev := m.current
	if err := prev.OnExit(m); err != nil {
		m.log.Warn("transition aborted on exit",
			zap.String("from", prev.Name()), zap.String("to", next.Name()), zap.Error(err))
		return fmt.Errorf("exit %s: %w", prev.Name(), err)
	}
	if err := next.OnEnter(m); err != nil {
		m.log.Warn("transition aborted on enter",
			zap.String("from", prev.Name()), zap.String("to", next.Name()), zap.Error(err))
		if exitErr := next.OnExit(m); exitErr != nil {
			m.log.Warn("cleanup after failed enter", zap.String("state", next.Name()), zap.Error(exitErr))
		}
		if reErr := prev.OnEnter(m); reErr != nil {
			m.log.Error("re-entering previous state failed", zap.String("state", prev.Name()), zap.Error(reErr))
		}
		return fmt.Errorf("enter %s: %w", next.Name(), err)
	}
	m.current = next
	m.log.Info("transition", zap.String("from", prev.Name()), zap.String("to", next.Name()))
	for _, fn := range m.observer {
		fn(prev, next)
	}
	return nil
}

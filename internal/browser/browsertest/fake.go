// Package browsertest provides an in-memory browser for tests of code that drives pages.
package browsertest

import (
	"context"
	"errors"
	"sync"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
)

// Manager hands out fake sessions that serve the same HTML and screenshot bytes on every page.
// It counts sessions and pages so tests can check that everything acquired was released.
type Manager struct {
	HTML        string
	Shot        []byte
	AcquireErr  error
	NavigateErr error

	mu             sync.Mutex
	sessions       int
	sessionsClosed int
	pages          int
	pagesClosed    int
	navigated      []string
}

func (m *Manager) Acquire(_ context.Context) (browser.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireErr != nil {
		return nil, m.AcquireErr
	}
	m.sessions++
	return &session{m: m}, nil
}

func (m *Manager) Sessions() (acquired, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions, m.sessionsClosed
}

func (m *Manager) Pages() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages, m.pagesClosed
}

func (m *Manager) Navigated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.navigated...)
}

type session struct {
	m      *Manager
	once   sync.Once
	closed bool
}

func (s *session) NewPage(_ context.Context) (browser.Page, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.closed {
		return nil, browser.ErrSessionClosed
	}
	s.m.pages++
	return &page{m: s.m}, nil
}

func (s *session) Close() error {
	s.once.Do(func() {
		s.m.mu.Lock()
		s.closed = true
		s.m.sessionsClosed++
		s.m.mu.Unlock()
	})
	return nil
}

type page struct {
	m    *Manager
	once sync.Once
}

func (p *page) Navigate(url string, _ string) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	p.m.navigated = append(p.m.navigated, url)
	return p.m.NavigateErr
}

func (p *page) HTML() (string, error) {
	return p.m.HTML, nil
}

func (p *page) Screenshot(_ int) ([]byte, error) {
	if p.m.Shot == nil {
		return nil, errors.New("no screenshot configured")
	}
	return p.m.Shot, nil
}

func (p *page) Close() error {
	p.once.Do(func() {
		p.m.mu.Lock()
		p.m.pagesClosed++
		p.m.mu.Unlock()
	})
	return nil
}

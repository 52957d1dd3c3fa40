package services

import (
	"sync"
	"time"
)

// turnState is the in-memory per-session voice state: accumulated chunks of
// the in-progress utterance, the last partial transcript, and the "digital
// human is speaking" flag. Created on the first chunk of a turn, cleared
// when the turn finalizes or the session is swept.
type turnState struct {
	chunks     [][]byte
	partial    string
	speaking   bool
	speakTimer *time.Timer
	busy       bool
	turnCount  int64
	lastActive time.Time
}

// TurnStore owns all turnState, keyed by session id. It is constructed once
// at process start and passed to the voice pipeline; accessors are
// goroutine-safe and a periodic sweep evicts stale sessions.
type TurnStore struct {
	mu       sync.Mutex
	sessions map[string]*turnState
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewTurnStore(ttl time.Duration) *TurnStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TurnStore{
		sessions: map[string]*turnState{},
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
}

func (s *TurnStore) get(sessionID string) *turnState {
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &turnState{}
		s.sessions[sessionID] = st
	}
	st.lastActive = time.Now()
	return st
}

// TryAcquire reserves the session for one turn. Returns false when another
// turn is already in flight.
func (s *TurnStore) TryAcquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(sessionID)
	if st.busy {
		return false
	}
	st.busy = true
	st.turnCount++
	return true
}

func (s *TurnStore) Release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sessionID]; ok {
		st.busy = false
	}
}

func (s *TurnStore) TurnIndex(sessionID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sessionID]; ok {
		return st.turnCount
	}
	return 0
}

func (s *TurnStore) AppendChunk(sessionID string, chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(sessionID)
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	st.chunks = append(st.chunks, buf)
}

// Buffered concatenates the accumulated chunks of the current utterance.
func (s *TurnStore) Buffered(sessionID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	var n int
	for _, c := range st.chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range st.chunks {
		out = append(out, c...)
	}
	return out
}

func (s *TurnStore) ClearBuffer(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sessionID]; ok {
		st.chunks = nil
		st.partial = ""
	}
}

func (s *TurnStore) SetPartial(sessionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(sessionID).partial = text
}

func (s *TurnStore) Partial(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sessionID]; ok {
		return st.partial
	}
	return ""
}

// SetSpeaking raises the speaking flag and schedules its automatic clear
// after the estimated spoken duration.
func (s *TurnStore) SetSpeaking(sessionID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(sessionID)
	if st.speakTimer != nil {
		st.speakTimer.Stop()
	}
	st.speaking = true
	st.speakTimer = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.sessions[sessionID]; ok {
			cur.speaking = false
		}
	})
}

func (s *TurnStore) Speaking(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sessionID]; ok {
		return st.speaking
	}
	return false
}

// ClearSpeaking lowers the flag regardless of any pending timer and reports
// whether the digital human was considered speaking (barge-in happened).
func (s *TurnStore) ClearSpeaking(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	was := st.speaking
	st.speaking = false
	if st.speakTimer != nil {
		st.speakTimer.Stop()
		st.speakTimer = nil
	}
	return was
}

// Drop removes the session's state entirely (session ended).
func (s *TurnStore) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sessionID]; ok {
		if st.speakTimer != nil {
			st.speakTimer.Stop()
		}
		delete(s.sessions, sessionID)
	}
}

func (s *TurnStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartSweeper evicts sessions idle longer than the TTL.
func (s *TurnStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-t.C:
				s.sweep()
			}
		}
	}()
}

func (s *TurnStore) sweep() {
	cutoff := time.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.sessions {
		if st.lastActive.Before(cutoff) && !st.busy {
			if st.speakTimer != nil {
				st.speakTimer.Stop()
			}
			delete(s.sessions, id)
		}
	}
}

func (s *TurnStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

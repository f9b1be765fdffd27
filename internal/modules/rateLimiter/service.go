package rateLimiter

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FixedWindowLimiter counts requests per client identity in fixed windows.
// Records are created on first sight and live for the life of the process.
type FixedWindowLimiter struct {
	clients map[string]*ClientWindow
	limit   int
	window  time.Duration
	now     Clock
	mu      sync.Mutex
	logger  *zap.Logger
}

func NewFixedWindowLimiter(cfg Config, log *zap.Logger) (*FixedWindowLimiter, error) {
	return NewFixedWindowLimiterWithClock(cfg, time.Now, log)
}

func NewFixedWindowLimiterWithClock(cfg Config, clock Clock, log *zap.Logger) (*FixedWindowLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	log.Info("Initializing FixedWindowLimiter",
		zap.Int("limit", cfg.Limit),
		zap.Duration("window", cfg.Window))

	return &FixedWindowLimiter{
		clients: make(map[string]*ClientWindow),
		limit:   cfg.Limit,
		window:  cfg.Window,
		now:     clock,
		logger:  log,
	}, nil
}

// CheckAndRecord decides whether the request from identity may proceed and
// records it when allowed. A denied request leaves the window untouched.
func (fw *FixedWindowLimiter) CheckAndRecord(identity string) Decision {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.now()

	client, exists := fw.clients[identity]
	if !exists {
		fw.clients[identity] = &ClientWindow{Count: 1, WindowStart: now}
		fw.logger.Debug("Client window created",
			zap.String("ip", identity),
			zap.Int("tracked_clients", len(fw.clients)))
		return Decision{Allowed: true}
	}

	elapsed := now.Sub(client.WindowStart)
	if elapsed >= fw.window {
		client.Count = 1
		client.WindowStart = now
		fw.logger.Debug("Client window reset", zap.String("ip", identity))
		return Decision{Allowed: true}
	}

	if client.Count < fw.limit {
		client.Count++
		fw.logger.Debug("Request allowed",
			zap.String("ip", identity),
			zap.Int("count", client.Count))
		return Decision{Allowed: true}
	}

	fw.logger.Debug("Request denied - limit reached",
		zap.String("ip", identity),
		zap.Int("count", client.Count))

	return Decision{
		Allowed:    false,
		Reason:     ReasonRateLimitExceeded,
		RetryAfter: fw.window - elapsed,
	}
}

// GetClient returns a copy of the identity's window state.
func (fw *FixedWindowLimiter) GetClient(identity string) (ClientWindow, bool) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	client, exists := fw.clients[identity]
	if !exists {
		return ClientWindow{}, false
	}
	return *client, true
}

// DeleteClient forgets an identity so its next request starts a fresh window.
func (fw *FixedWindowLimiter) DeleteClient(identity string) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, exists := fw.clients[identity]; !exists {
		return false
	}
	delete(fw.clients, identity)
	fw.logger.Info("Client deleted", zap.String("ip", identity))
	return true
}

// ListClients returns snapshots sorted by identity.
func (fw *FixedWindowLimiter) ListClients() []ClientSnapshot {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.now()
	clients := make([]ClientSnapshot, 0, len(fw.clients))
	for ip, client := range fw.clients {
		remaining := fw.limit - client.Count
		if now.Sub(client.WindowStart) >= fw.window {
			remaining = fw.limit
		}
		clients = append(clients, ClientSnapshot{
			Ip:          ip,
			Count:       client.Count,
			WindowStart: client.WindowStart,
			Remaining:   remaining,
		})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Ip < clients[j].Ip })
	return clients
}

// Len reports how many identities are tracked. The table is never evicted.
func (fw *FixedWindowLimiter) Len() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.clients)
}

func (fw *FixedWindowLimiter) Limit() int {
	return fw.limit
}

func (fw *FixedWindowLimiter) Window() time.Duration {
	return fw.window
}

package feed

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"giftbuyer/internal/observability"
	"giftbuyer/internal/offers"
)

// SourceConfig tunes the websocket connection.
type SourceConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval between ping frames.
	PingInterval time.Duration
	// ReadTimeout bounds a single read.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration
}

// DefaultSourceConfig returns the default connection tuning.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Batch is one feed message: the full current offer set plus its
// fingerprint.
type Batch struct {
	Items []offers.RawOffer `json:"items"`
	Count int               `json:"count"`
	Hash  string            `json:"hash"`
}

// Options configures a Source.
type Options struct {
	// Endpoint is the websocket URL of the offer feed.
	Endpoint string

	// Config overrides the connection tuning. Nil means defaults.
	Config *SourceConfig

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Source streams offer batches from a websocket feed, reconnecting with
// exponential backoff on connection loss.
type Source struct {
	endpoint string
	config   SourceConfig
	logger   *zap.Logger
	metrics  *observability.Metrics

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	batches chan Batch
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSource connects to the endpoint and starts streaming. The returned
// Source must be closed to release the connection.
func NewSource(opts Options) (*Source, error) {
	cfg := DefaultSourceConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Source{
		endpoint: opts.Endpoint,
		config:   cfg,
		logger:   logger,
		metrics:  opts.Metrics,
		batches:  make(chan Batch, 16),
		done:     make(chan struct{}),
	}

	if err := s.connect(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Batches returns the stream of feed messages. The channel closes when the
// source is closed.
func (s *Source) Batches() <-chan Batch {
	return s.batches
}

// Close shuts the connection down and stops the stream.
func (s *Source) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.batches)
	return nil
}

func (s *Source) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("feed dial %s: %w", s.endpoint, err)
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

func (s *Source) currentConn() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// readLoop reads feed messages and reconnects on failure.
func (s *Source) readLoop() {
	defer s.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.ReconnectDelay
	bo.MaxInterval = s.config.MaxReconnectDelay
	bo.MaxElapsedTime = 0

	for !s.closed.Load() {
		conn := s.currentConn()
		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(bo.NextBackOff()):
			}
			if err := s.connect(); err != nil {
				s.logger.Warn("feed reconnect failed", zap.Error(err))
				continue
			}
			if s.metrics != nil {
				s.metrics.FeedReconnects.Inc()
			}
			s.logger.Info("feed reconnected", zap.String("endpoint", s.endpoint))
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Warn("feed read failed", zap.Error(err))
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()
			continue
		}

		bo.Reset()
		s.handleMessage(message)
	}
}

func (s *Source) handleMessage(message []byte) {
	var batch Batch
	if err := json.Unmarshal(message, &batch); err != nil {
		s.logger.Warn("feed message malformed", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.FeedMessages.Inc()
	}
	select {
	case s.batches <- batch:
	case <-s.done:
	}
}

// pingLoop keeps the connection alive.
func (s *Source) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

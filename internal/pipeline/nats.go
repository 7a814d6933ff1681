//file: internal/pipeline/nats.go

package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"

	"relp-ingest/config"
	"relp-ingest/internal/logger"
	"relp-ingest/internal/metrics"
)

// eventEnvelope is the wire form of a message published downstream.
type eventEnvelope struct {
	ID         string    `json:"id"`
	Input      string    `json:"input"`
	Host       string    `json:"host"`
	IP         string    `json:"ip"`
	Ruleset    string    `json:"ruleset"`
	Flags      uint8     `json:"flags"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// NATSSubmitter publishes every received event to a NATS subject derived
// from the message's routing target: <prefix>.<ruleset>.
type NATSSubmitter struct {
	conn          *nats.Conn
	subjectPrefix string
	log           *logger.Logger
	metrics       *metrics.Metrics
}

// NewNATSSubmitter connects to the configured NATS servers. metrics may be
// nil.
func NewNATSSubmitter(cfg *config.NATSConfig, log *logger.Logger, m *metrics.Metrics) (*NATSSubmitter, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	opts, err := buildNATSOptions(cfg, log, m)
	if err != nil {
		return nil, fmt.Errorf("failed to build NATS options: %w", err)
	}

	log.Info("establishing NATS connection", "urls", cfg.URLs)
	conn, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if m != nil {
		m.SetNATSConnectionStatus(true)
	}
	log.Info("NATS connection established")

	return &NATSSubmitter{
		conn:          conn,
		subjectPrefix: cfg.SubjectPrefix,
		log:           log,
		metrics:       m,
	}, nil
}

func (s *NATSSubmitter) Submit(msg *Message) error {
	rulesetName := "default"
	if msg.Ruleset != nil {
		rulesetName = msg.Ruleset.Name
	}

	env := eventEnvelope{
		ID:         msg.ID.String(),
		Input:      msg.InputName,
		Host:       msg.ReceivedFromHost,
		IP:         msg.ReceivedFromIP,
		Ruleset:    rulesetName,
		Flags:      uint8(msg.Flags),
		Payload:    msg.RawPayload,
		ReceivedAt: msg.ReceivedAt,
	}
	data, err := json.Marshal(&env)
	if err != nil {
		return fmt.Errorf("pipeline: encode event: %w", err)
	}

	subject := s.subjectPrefix + "." + rulesetName
	if err := s.conn.Publish(subject, data); err != nil {
		if s.metrics != nil {
			s.metrics.IncSubmitFailures()
		}
		return fmt.Errorf("pipeline: publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (s *NATSSubmitter) Close() error {
	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	return s.conn.Drain()
}

// buildNATSOptions creates NATS connection options with authentication,
// TLS and reconnect behavior.
func buildNATSOptions(cfg *config.NATSConfig, log *logger.Logger, m *metrics.Metrics) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.SetNATSConnectionStatus(false)
			}
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if m != nil {
				m.SetNATSConnectionStatus(true)
				m.IncNATSReconnects()
			}
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	// Authentication options (mutually exclusive, validated at config load)
	switch {
	case cfg.CredsFile != "":
		log.Info("using NATS JWT authentication with creds file", "credsFile", cfg.CredsFile)
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	case cfg.NKeySeedFile != "":
		log.Info("using NATS NKey authentication", "seedFile", cfg.NKeySeedFile)
		opt, err := nkeyOptionFromSeedFile(cfg.NKeySeedFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	case cfg.Token != "":
		log.Info("using NATS token authentication")
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.Username != "":
		log.Info("using NATS username/password authentication", "username", cfg.Username)
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	if cfg.TLS.Enable {
		tlsConf, err := createClientTLSConfig(cfg, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nats.Secure(tlsConf))
	}

	return opts, nil
}

// nkeyOptionFromSeedFile derives the NKey public key and signer from a
// seed file.
func nkeyOptionFromSeedFile(path string) (nats.Option, error) {
	seed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read nkey seed file: %w", err)
	}
	kp, err := nkeys.FromSeed([]byte(strings.TrimSpace(string(seed))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}
	return nats.Nkey(pub, kp.Sign), nil
}

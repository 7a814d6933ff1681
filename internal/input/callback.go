//file: internal/input/callback.go

package input

import (
	"fmt"

	"relp-ingest/internal/logger"
	"relp-ingest/internal/metrics"
	"relp-ingest/internal/pipeline"
)

// ErrorPolicy decides what the receive callback reports to the engine when
// message construction or submission fails.
type ErrorPolicy int

const (
	// PolicyContinue keeps the delivering session alive: failures are
	// logged, never propagated. A single bad event must not kill a session.
	PolicyContinue ErrorPolicy = iota
	// PolicyTerminate surfaces the failure so the engine closes the
	// delivering session.
	PolicyTerminate
)

// ParseErrorPolicy maps the configuration value onto a policy.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "continue":
		return PolicyContinue, nil
	case "terminate":
		return PolicyTerminate, nil
	default:
		return PolicyContinue, fmt.Errorf("input: unknown error policy %q", s)
	}
}

// Callback turns raw protocol deliveries into pipeline messages. The input
// identity tag is constructed once at module initialization and shared by
// every message; it is never reallocated per event.
type Callback struct {
	inputName string
	gens      *Generations
	table     *pipeline.Table
	submitter pipeline.Submitter
	policy    ErrorPolicy
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewCallback builds the receive callback. metrics may be nil.
func NewCallback(
	inputName string,
	gens *Generations,
	table *pipeline.Table,
	submitter pipeline.Submitter,
	policy ErrorPolicy,
	log *logger.Logger,
	m *metrics.Metrics,
) *Callback {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Callback{
		inputName: inputName,
		gens:      gens,
		table:     table,
		submitter: submitter,
		policy:    policy,
		log:       log,
		metrics:   m,
	}
}

// OnReceive is invoked synchronously by the engine for every fully received
// event. It allocates a message, stamps provenance and parse flags,
// attaches the active generation's routing target, and submits downstream.
// On success the pipeline owns the message.
func (c *Callback) OnReceive(host, ip string, payload []byte) error {
	msg := pipeline.NewMessage(c.inputName)
	msg.SetRawPayload(payload)
	msg.Flags = pipeline.FlagParseHostname | pipeline.FlagNeedsParsing
	msg.ReceivedFromHost = host
	msg.ReceivedFromIP = ip

	ruleset := c.table.Default()
	if active := c.gens.Active(); active != nil && active.Ruleset() != nil {
		ruleset = active.Ruleset()
	}
	msg.Ruleset = ruleset

	if err := c.submitter.Submit(msg); err != nil {
		if c.metrics != nil {
			c.metrics.IncEventsTotal("error")
		}
		c.log.Error("failed to submit event downstream",
			"from", ip,
			"host", host,
			"error", err)
		if c.policy == PolicyTerminate {
			return err
		}
		return nil
	}

	if c.metrics != nil {
		c.metrics.IncEventsTotal("received")
	}
	return nil
}

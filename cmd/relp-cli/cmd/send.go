// file: cmd/relp-cli/cmd/send.go
package cmd

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"relp-ingest/internal/relp"
)

// batchFile is the YAML form accepted by --batch: a list of event payloads
// sent over a single session.
type batchFile struct {
	Messages []string `yaml:"messages"`
}

var sendCmd = &cobra.Command{
	Use:   "send --addr <host:port> [--message <text> | --batch <file.yaml>]",
	Short: "Send test events to a listener over a RELP session",
	Long: `The send command opens a RELP session against a listener, delivers one or
more syslog events, waits for every acknowledgement, and closes the session.
Use --message with --count for repeated single events, or --batch with a
YAML file listing payloads to replay a recorded sequence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		message, _ := cmd.Flags().GetString("message")
		batchPath, _ := cmd.Flags().GetString("batch")
		count, _ := cmd.Flags().GetInt("count")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if message == "" && batchPath == "" {
			return cmd.Help()
		}

		payloads, err := collectPayloads(message, batchPath, count)
		if err != nil {
			return err
		}

		opts := []relp.ClientOption{relp.WithTimeout(timeout)}

		if useTLS, _ := cmd.Flags().GetBool("tls"); useTLS {
			tlsConf, err := buildSendTLSConfig(cmd)
			if err != nil {
				return err
			}
			opts = append(opts, relp.WithClientTLS(tlsConf))
		}
		if compress, _ := cmd.Flags().GetBool("compress"); compress {
			opts = append(opts, relp.WithCompression())
		}

		client, err := relp.Dial(addr, opts...)
		if err != nil {
			return err
		}
		defer client.Close()

		if client.Compressed() {
			fmt.Println("session open, deflate compression negotiated")
		}

		start := time.Now()
		for i, payload := range payloads {
			if err := client.Send([]byte(payload)); err != nil {
				return fmt.Errorf("event %d of %d failed: %w", i+1, len(payloads), err)
			}
		}
		fmt.Printf("sent %d event(s) to %s in %s\n", len(payloads), addr, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// collectPayloads builds the ordered payload list from either the repeated
// single message or the batch file.
func collectPayloads(message, batchPath string, count int) ([]string, error) {
	if batchPath != "" {
		raw, err := os.ReadFile(batchPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read batch file: %w", err)
		}
		var batch batchFile
		if err := yaml.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("failed to parse batch file: %w", err)
		}
		if len(batch.Messages) == 0 {
			return nil, fmt.Errorf("batch file %s contains no messages", batchPath)
		}
		return batch.Messages, nil
	}

	if count < 1 {
		count = 1
	}
	payloads := make([]string, count)
	for i := range payloads {
		payloads[i] = message
	}
	return payloads, nil
}

// buildSendTLSConfig assembles the client TLS configuration from flags.
func buildSendTLSConfig(cmd *cobra.Command) (*tls.Config, error) {
	insecure, _ := cmd.Flags().GetBool("tls-insecure")
	caFile, _ := cmd.Flags().GetString("tls-ca")
	certFile, _ := cmd.Flags().GetString("tls-cert")
	keyFile, _ := cmd.Flags().GetString("tls-key")

	conf := &tls.Config{InsecureSkipVerify: insecure}

	if caFile != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in CA file %s", caFile)
		}
		conf.RootCAs = pool
	}

	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}

	return conf, nil
}

func init() {
	sendCmd.Flags().String("addr", "localhost:2514", "Listener address as host:port")
	sendCmd.Flags().String("message", "", "Event payload to send")
	sendCmd.Flags().Int("count", 1, "How many times to send --message")
	sendCmd.Flags().String("batch", "", "Path to a YAML file with a messages list to send in order")
	sendCmd.Flags().Duration("timeout", 10*time.Second, "Per-operation network timeout")
	sendCmd.Flags().Bool("compress", false, "Offer deflate frame compression during open")
	sendCmd.Flags().Bool("tls", false, "Connect over TLS")
	sendCmd.Flags().Bool("tls-insecure", false, "Skip server certificate verification")
	sendCmd.Flags().String("tls-ca", "", "Path to a CA bundle for server verification")
	sendCmd.Flags().String("tls-cert", "", "Path to a client certificate")
	sendCmd.Flags().String("tls-key", "", "Path to the client certificate key")
}

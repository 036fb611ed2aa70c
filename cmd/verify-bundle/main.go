package main

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/urfave/cli.v1"

	"tlsn-notary/proofverifier"
	"tlsn-notary/session"
	"tlsn-notary/shared"
	"tlsn-notary/verifier"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "verify-bundle"
	app.Usage = "Verifies a notarized disclosure bundle offline"
	app.ArgsUsage = "bundle.json"
	app.Version = "0.1"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "server, s",
			Usage: "expected server name",
		},
		cli.StringFlag{
			Name:  "notary-key, k",
			Usage: "JSON file with the trusted notary key",
		},
		cli.StringFlag{
			Name:  "roots, r",
			Usage: "PEM file of root certificates for checking the server chain",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "print the report as JSON",
		},
	}
	app.Action = verify
	return app
}

func verify(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("missing bundle path")
	}

	logger, err := shared.NewLogger(shared.LoggerConfig{ServiceName: "verifier", Quiet: true})
	if err != nil {
		return err
	}
	defer logger.Sync()
	verifier.SetLogger(logger.Logger)

	opts := proofverifier.Options{
		ServerName: c.String("server"),
		Logger:     logger,
	}
	if p := c.String("notary-key"); p != "" {
		key, err := loadKey(p)
		if err != nil {
			return err
		}
		opts.TrustedKey = key
	}
	if p := c.String("roots"); p != "" {
		pem, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		opts.Roots = x509.NewCertPool()
		if !opts.Roots.AppendCertsFromPEM(pem) {
			return fmt.Errorf("no certificates in %s", p)
		}
	}

	report, err := proofverifier.Validate(context.Background(), path, opts)
	if err != nil {
		return fmt.Errorf("bundle rejected (%s): %w", shared.KindOf(err), err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(c.App.Writer, report, opts.TrustedKey != nil)
	return nil
}

func loadKey(path string) (*session.NotaryKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var key session.NotaryKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parse notary key %s: %w", path, err)
	}
	if !key.Algorithm.Valid() {
		return nil, fmt.Errorf("notary key %s: unknown algorithm %q", path, key.Algorithm)
	}
	return &key, nil
}

func printReport(w io.Writer, r *proofverifier.Report, trusted bool) {
	fmt.Fprintln(w, "✅ Bundle verified")
	fmt.Fprintf(w, "   Session ID: %s\n", r.SessionID)
	fmt.Fprintf(w, "   Server: %s\n", r.ServerName)
	fmt.Fprintf(w, "   Notarized at: %s\n", r.NotarizedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "   Notary key: %s\n", r.NotaryKey)
	if !trusted {
		fmt.Fprintln(w, "   ⚠️  No trusted key given, the bundle's own key was used")
	}
	fmt.Fprintf(w, "   Disclosed: %d openings, %d sent bytes, %d received bytes\n", len(r.Disclosed), r.SentBytes, r.RecvBytes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "📤 Sent:")
	fmt.Fprintln(w, indent(r.Sent))
	fmt.Fprintln(w, "📥 Received:")
	fmt.Fprintln(w, indent(r.Received))
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n"), "\n")
	for i, l := range lines {
		lines[i] = "   " + strings.TrimRight(l, "\r")
	}
	return strings.Join(lines, "\n")
}

package update

import (
	"context"
	"fmt"
	"log/slog"

	"jabberwocky238/jw238ddns/types"
)

// NSUpdateClient implements Client by rendering nsupdate scripts and
// handing them to a Runner.
type NSUpdateClient struct {
	server string
	runner Runner
}

// NewNSUpdateClient creates a client that targets server ("host" or
// "host:port") through runner.
func NewNSUpdateClient(server string, runner Runner) *NSUpdateClient {
	return &NSUpdateClient{server: server, runner: runner}
}

// PushA sends the A replacement and then the PTR addition. The PTR is not
// attempted when the A update fails.
func (c *NSUpdateClient) PushA(ctx context.Context, r *types.DNSRecord) error {
	if r.Type != types.RecordTypeA {
		return fmt.Errorf("%w: PushA called with %s record %s", types.ErrInvalidRecordType, r.Type, r.Name)
	}

	slog.Info("updating A record", "name", r.Name, "address", r.Value)

	aScript, err := AScript(c.server, r)
	if err != nil {
		return err
	}
	ptrScript, err := PTRScript(c.server, r)
	if err != nil {
		return err
	}

	if err := c.run(ctx, "A", r.Name, aScript); err != nil {
		return err
	}
	if err := c.run(ctx, "PTR", r.Name, ptrScript); err != nil {
		return err
	}

	slog.Info("updated A record", "name", r.Name, "address", r.Value)
	return nil
}

// PushCNAME sends the CNAME replacement.
func (c *NSUpdateClient) PushCNAME(ctx context.Context, r *types.DNSRecord) error {
	if r.Type != types.RecordTypeCNAME {
		return fmt.Errorf("%w: PushCNAME called with %s record %s", types.ErrInvalidRecordType, r.Type, r.Name)
	}

	slog.Info("updating CNAME record", "name", r.Name, "target", r.Value)

	s, err := CNAMEScript(c.server, r)
	if err != nil {
		return err
	}
	if err := c.run(ctx, "CNAME", r.Name, s); err != nil {
		return err
	}

	slog.Info("updated CNAME record", "name", r.Name, "target", r.Value)
	return nil
}

func (c *NSUpdateClient) run(ctx context.Context, op, name, script string) error {
	stdout, stderr, err := c.runner.Run(ctx, script)
	if err != nil {
		return &UpdateError{Op: op, Name: name, Stdout: stdout, Stderr: stderr, Err: err}
	}
	slog.Debug("nsupdate output", "op", op, "name", name, "output", stdout)
	return nil
}

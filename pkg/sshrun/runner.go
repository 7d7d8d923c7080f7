package sshrun

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netops-lab/loopctl/pkg/util"
)

// CommandResult is the output of one command on one host.
type CommandResult struct {
	Command string
	Output  string
	Err     error
}

// HostResult collects a host's command outputs. Err is set when the
// host could not be reached at all.
type HostResult struct {
	Host    string
	Err     error
	Results []CommandResult
}

// Runner executes commands across inventory hosts with a bounded
// worker pool. Hosts are independent; a failure on one never blocks
// the others.
type Runner struct {
	// Concurrency bounds simultaneous SSH sessions. Zero means 8.
	Concurrency int

	// DialTimeout bounds the SSH handshake. Zero means 15s.
	DialTimeout time.Duration
}

// Run executes the commands on every host and returns per-host results
// in inventory order.
func (r *Runner) Run(ctx context.Context, hosts []Host, commands []string) []HostResult {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	results := make([]HostResult, len(hosts))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, host := range hosts {
		wg.Add(1)
		go func(i int, host Host) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			select {
			case <-ctx.Done():
				results[i] = HostResult{Host: host.Name, Err: ctx.Err()}
				return
			default:
			}

			results[i] = r.runHost(host, commands)
		}(i, host)
	}

	wg.Wait()
	return results
}

func (r *Runner) runHost(host Host, commands []string) HostResult {
	result := HostResult{Host: host.Name}

	timeout := r.DialTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	config := &ssh.ClientConfig{
		User: host.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(host.Password),
		},
		// Lab/sandbox environment — production would verify host keys.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	log := util.WithDevice(host.Name)
	log.Debugf("dialing %s", host.Addr())

	client, err := ssh.Dial("tcp", host.Addr(), config)
	if err != nil {
		result.Err = fmt.Errorf("SSH dial %s: %w", host.Addr(), err)
		log.Warnf("unreachable: %v", err)
		return result
	}
	defer client.Close()

	for _, cmd := range commands {
		output, err := runCommand(client, cmd)
		result.Results = append(result.Results, CommandResult{
			Command: cmd,
			Output:  output,
			Err:     err,
		})
		if err != nil {
			log.Warnf("%q failed: %v", cmd, err)
		}
	}
	return result
}

func runCommand(client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("opening session: %w", err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(cmd)
	if err != nil {
		return strings.TrimSpace(string(output)), fmt.Errorf("running %q: %w", cmd, err)
	}
	return strings.TrimSpace(string(output)), nil
}

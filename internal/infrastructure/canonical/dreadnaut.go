package canonical

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// replyTerminator is echoed by dreadnaut after every canonical graph so the
// reader knows where one reply ends.
const replyTerminator = "&&&"

// dreadnautInit turns off automorphism and level output and line wrapping.
const dreadnautInit = "l=0 -a -m\n"

// Dreadnaut canonizes neighbourhoods with an external dreadnaut process
// (part of nauty).  One handle owns one process; calls on a handle are
// serialised.  Close must be called to stop the process.
type Dreadnaut struct {
	mu     sync.Mutex
	w      io.WriteCloser
	r      *bufio.Reader
	stop   func() error
	broken error
	closed bool
}

var _ charge.Canonizer = (*Dreadnaut)(nil)

// NewDreadnaut starts the dreadnaut binary at path.
func NewDreadnaut(path string) (*Dreadnaut, error) {
	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCanonizationFailed, "failed to open dreadnaut stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCanonizationFailed, "failed to open dreadnaut stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCanonizationFailed, "failed to start dreadnaut").
			WithDetail("path=" + path)
	}
	stop := func() error {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
		return nil
	}
	d, err := newDreadnaut(stdin, stdout, stop)
	if err != nil {
		_ = stop()
		return nil, err
	}
	return d, nil
}

// newDreadnaut wraps an already running process behind w and r.
func newDreadnaut(w io.WriteCloser, r io.Reader, stop func() error) (*Dreadnaut, error) {
	var once sync.Once
	var stopErr error
	d := &Dreadnaut{w: w, r: bufio.NewReader(r), stop: func() error {
		once.Do(func() { stopErr = stop() })
		return stopErr
	}}
	if _, err := io.WriteString(w, dreadnautInit); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCanonizationFailed, "failed to configure dreadnaut")
	}
	return d, nil
}

func (d *Dreadnaut) Canonize(ctx context.Context, g *molecule.Graph, atom molecule.AtomID, shell int, color molecule.ColorAttr) (charge.CanonicalKey, error) {
	nb, err := g.Neighborhood(atom, shell)
	if err != nil {
		return "", err
	}
	sub := induce(g, nb, color)
	cmd, cells := encodeNeighborhood(sub)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", errors.New(errors.ErrCodeCanonizationFailed, "dreadnaut handle is closed")
	}
	if d.broken != nil {
		return "", errors.Wrap(d.broken, errors.ErrCodeCanonizationFailed, "dreadnaut process is unusable")
	}

	type reply struct {
		lines []string
		err   error
	}
	done := make(chan reply, 1)
	go func() {
		if _, err := io.WriteString(d.w, cmd); err != nil {
			done <- reply{err: err}
			return
		}
		lines, err := d.readReply()
		done <- reply{lines: lines, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			d.broken = r.err
			return "", errors.Wrap(r.err, errors.ErrCodeCanonizationFailed, "dreadnaut exchange failed")
		}
		return keyFromReply(cells, r.lines), nil
	case <-ctx.Done():
		// The process may be mid-reply; it cannot be reused.
		d.broken = ctx.Err()
		_ = d.stop()
		return "", errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "canonization cancelled")
	}
}

func (d *Dreadnaut) readReply() ([]string, error) {
	var lines []string
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == replyTerminator {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// Err reports why the handle can no longer canonize, or nil while it can.
func (d *Dreadnaut) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New(errors.ErrCodeCanonizationFailed, "dreadnaut handle is closed")
	}
	return d.broken
}

// Close asks dreadnaut to quit and releases the process.  It is safe to call
// more than once.
func (d *Dreadnaut) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.broken == nil {
		_, _ = io.WriteString(d.w, "q\n")
	}
	_ = d.w.Close()
	return d.stop()
}

// encodeNeighborhood renders sub as a dreadnaut command that reads the
// graph, sets the colour partition, computes the canonical labelling and
// prints the canonical graph followed by the terminator.  The returned cell
// description lists the colour and size of every cell in partition order.
func encodeNeighborhood(sub *subgraph) (cmd, cells string) {
	n := len(sub.seeds)
	byColor := make(map[string][]int)
	for i, c := range sub.seeds {
		byColor[c] = append(byColor[c], i)
	}
	colors := make([]string, 0, len(byColor))
	for c := range byColor {
		colors = append(colors, c)
	}
	// focusMarker sorts before every element symbol, so the focus cell is first.
	sort.Strings(colors)

	var sb strings.Builder
	fmt.Fprintf(&sb, "n=%d g ", n)
	for i := 0; i < n; i++ {
		nbrs := append([]int(nil), sub.adj[i]...)
		sort.Ints(nbrs)
		for _, j := range nbrs {
			if j > i {
				fmt.Fprintf(&sb, "%d ", j)
			}
		}
		if i < n-1 {
			sb.WriteString(";")
		}
	}
	sb.WriteString(". f=[")
	desc := make([]string, len(colors))
	for ci, c := range colors {
		if ci > 0 {
			sb.WriteString("|")
		}
		members := make([]string, len(byColor[c]))
		for k, v := range byColor[c] {
			members[k] = fmt.Sprint(v)
		}
		sb.WriteString(strings.Join(members, " "))
		desc[ci] = fmt.Sprintf("%s:%d", c, len(members))
	}
	fmt.Fprintf(&sb, "] c x b \"%s\\n\"\n", replyTerminator)
	return sb.String(), strings.Join(desc, ",")
}

// keyFromReply hashes the cell description and the adjacency lines of the
// canonical graph.  Lines of the canonical labelling itself depend on the
// input order and are skipped.
func keyFromReply(cells string, lines []string) charge.CanonicalKey {
	h := sha256.New()
	fmt.Fprintf(h, "cells:%s\n", cells)
	for _, l := range lines {
		if strings.Contains(l, ":") {
			fmt.Fprintf(h, "%s\n", strings.Join(strings.Fields(l), " "))
		}
	}
	return charge.CanonicalKey(hex.EncodeToString(h.Sum(nil)))
}

//Personal.AI order the ending

//go:build !tinygo

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/shlex"

	"elektra/internal/proto"
)

var (
	errUsage     = errors.New("usage")
	errBreakData = errors.New("chunk is all 0xFF and would end the store session")
)

const usage = `commands:
  stop                            stop the animation
  resume [-persistent]            resume the animation without re-initialising
  start [-persistent]             initialise and run the program in RAM, or flash with -persistent
  store [-persistent] [-chunk n] <file>
                                  upload a program image and end the session
  break                           send a break packet (reset to stopped/control)
  status                          print the status report
  repl                            read commands from stdin`

// console runs ledctl commands against one connected device.
type console struct {
	c   *client
	out io.Writer
}

func (s *console) control(ctx context.Context, op proto.Opcode, persistent bool) error {
	if _, err := s.c.waitIdle(ctx, nil); err != nil {
		return err
	}
	return s.c.send([]byte{proto.Control{Op: op, Persistent: persistent}.Byte()})
}

// stop halts the animation. A busy device discards control reports and a
// device in store mode stores them as data; a break packet is sent then,
// which also leaves the device stopped.
func (s *console) stop() error {
	st, err := s.c.status()
	if err != nil {
		return err
	}
	if st.AnimationActive || st.StorageWriteActive || st.Mode == proto.ModeStore {
		return s.c.send(proto.BreakPacket(proto.MaxReportLen))
	}
	return s.c.send([]byte{proto.Control{Op: proto.OpStop}.Byte()})
}

// run executes one command line.
func (s *console) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "stop":
		return s.stop()
	case "resume":
		return s.controlCmd(ctx, proto.OpResume, args[1:])
	case "start":
		return s.controlCmd(ctx, proto.OpStart, args[1:])
	case "break":
		return s.c.send(proto.BreakPacket(proto.MaxReportLen))
	case "status":
		st, err := s.c.status()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "animation=%t write=%t mode=%s\n", st.AnimationActive, st.StorageWriteActive, st.Mode)
		return nil
	case "store":
		return s.storeCmd(ctx, args[1:])
	case "help":
		fmt.Fprintln(s.out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// controlCmd sends op with the store target chosen by -persistent. The device
// takes the target from every control report, so start and resume without the
// flag select RAM.
func (s *console) controlCmd(ctx context.Context, op proto.Opcode, args []string) error {
	fs := flag.NewFlagSet(op.String(), flag.ContinueOnError)
	fs.SetOutput(s.out)
	persistent := fs.Bool("persistent", false, "Run the program stored in flash.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("%w: %s [-persistent]", errUsage, op)
	}
	return s.control(ctx, op, *persistent)
}

func (s *console) storeCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("store", flag.ContinueOnError)
	fs.SetOutput(s.out)
	persistent := fs.Bool("persistent", false, "Store into flash instead of RAM.")
	chunk := fs.Int("chunk", proto.MaxReportLen, "Bytes per report.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: store [-persistent] [-chunk n] <file>", errUsage)
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := s.store(ctx, data, *persistent, *chunk); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "stored %d bytes\n", len(data))
	return nil
}

// store uploads data as one store session: begin, data reports paced by the
// status report, then a break packet to end the session.
func (s *console) store(ctx context.Context, data []byte, persistent bool, chunk int) error {
	if chunk <= 0 || chunk > proto.MaxReportLen {
		return fmt.Errorf("chunk size %d out of range 1..%d", chunk, proto.MaxReportLen)
	}
	for off := 0; off < len(data); off += chunk {
		if proto.IsBreak(data[off:min(off+chunk, len(data))]) {
			return fmt.Errorf("offset %d: %w", off, errBreakData)
		}
	}

	if err := s.control(ctx, proto.OpBeginStore, persistent); err != nil {
		return err
	}
	storeMode := proto.ModeStore
	for off := 0; off < len(data); off += chunk {
		if _, err := s.c.waitIdle(ctx, &storeMode); err != nil {
			return fmt.Errorf("offset %d: %w", off, err)
		}
		if err := s.c.send(data[off:min(off+chunk, len(data))]); err != nil {
			return fmt.Errorf("offset %d: %w", off, err)
		}
	}
	if _, err := s.c.waitIdle(ctx, &storeMode); err != nil {
		return err
	}
	return s.c.send(proto.BreakPacket(proto.MaxReportLen))
}

// repl reads command lines from in until EOF or "quit".
func (s *console) repl(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(s.out)
			return sc.Err()
		}
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}
		if args[0] == "repl" {
			continue
		}
		if err := s.run(ctx, args); err != nil {
			if errors.Is(err, errUsage) {
				fmt.Fprintln(s.out, strings.TrimPrefix(err.Error(), "usage: "))
				fmt.Fprintln(s.out, usage)
				continue
			}
			fmt.Fprintln(s.out, "error:", err)
		}
	}
}

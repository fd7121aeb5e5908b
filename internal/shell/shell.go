package shell

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"

	"kernsim/internal/kernel"
)

const prompt = "kernsim> "

// Shell is one interactive session bound to a kernel instance.
type Shell struct {
	k   *kernel.Kernel
	in  io.Reader
	out io.Writer
}

// New binds a session to the kernel and an input/output pair.
func New(k *kernel.Kernel, in io.Reader, out io.Writer) *Shell {
	return &Shell{k: k, in: in, out: out}
}

// Run executes the read-dispatch loop until exit or EOF.
func (s *Shell) Run() error {
	sc := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(s.out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(s.out, "parse error: %v\n", err)
			continue
		}
		if args[0] == "exit" {
			return nil
		}
		s.dispatch(args[0], args[1:])
	}
}

func (s *Shell) dispatch(cmd string, args []string) {
	switch cmd {
	case "ls":
		s.cmdLs(args)
	case "touch":
		s.cmdTouch(args)
	case "cat":
		s.cmdCat(args)
	case "netstat":
		s.cmdNetstat()
	case "dmesg":
		s.cmdDmesg()
	case "ps":
		s.cmdPs()
	case "free":
		s.cmdFree()
	case "uptime":
		s.cmdUptime()
	case "help":
		s.cmdHelp()
	case "panic":
		s.k.Panic(s.out, "panic requested from shell")
	default:
		fmt.Fprintf(s.out, "%s: command not found (try help)\n", cmd)
	}
}

func (s *Shell) cmdLs(args []string) {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	entries, err := s.k.VFS().List(path)
	if err != nil {
		fmt.Fprintf(s.out, "ls: %v\n", err)
		return
	}
	for _, e := range entries {
		kind := "-"
		if e.IsDir {
			kind = "d"
		}
		fmt.Fprintf(s.out, "%s %6d  %s\n", kind, e.Size, e.Name)
	}
}

func (s *Shell) cmdTouch(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: touch <path>")
		return
	}
	if err := s.k.VFS().CreateFile(args[0], nil); err != nil {
		fmt.Fprintf(s.out, "touch: %v\n", err)
	}
}

func (s *Shell) cmdCat(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: cat <path>")
		return
	}
	data, err := s.k.VFS().ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "cat: %v\n", err)
		return
	}
	_, _ = s.out.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(s.out)
	}
}

func (s *Shell) cmdNetstat() {
	st := s.k.Net().Stats()
	fmt.Fprintf(s.out, "rx ring: capacity=%d depth=%d accepted=%d dropped=%d\n",
		st.Capacity, st.Depth, st.Accepted, st.Dropped)
}

func (s *Shell) cmdDmesg() {
	if err := s.k.Log().Dump(s.out); err != nil {
		fmt.Fprintf(s.out, "dmesg: %v\n", err)
	}
}

func (s *Shell) cmdPs() {
	tasks := s.k.Tasks()
	fmt.Fprintf(s.out, "%6s  %-8s  %-9s  %12s  %4s  %4s\n",
		"ID", "PRIO", "STATE", "CPU", "DEP", "SUB")
	for _, t := range tasks {
		fmt.Fprintf(s.out, "%6d  %-8s  %-9s  %12s  %4d  %4d\n",
			t.ID, t.Priority, t.State, t.CPUTime, t.Deps, t.Dependents)
	}
}

func (s *Shell) cmdFree() {
	st := s.k.SlabStats()
	fmt.Fprintf(s.out, "slab: object=%dB live=%d resident_pages=%d\n",
		st.ObjectSize, st.Live, st.ResidentPages)
}

func (s *Shell) cmdUptime() {
	fmt.Fprintf(s.out, "boot %s, up %s\n", s.k.BootID(), s.k.Uptime().Round(time.Millisecond))
}

func (s *Shell) cmdHelp() {
	cmds := map[string]string{
		"ls":      "list a directory (default /)",
		"touch":   "create an empty file",
		"cat":     "print a file",
		"netstat": "receive ring counters",
		"dmesg":   "dump the kernel log buffer",
		"ps":      "task table",
		"free":    "slab allocator counters",
		"uptime":  "boot id and elapsed time",
		"panic":   "trigger a kernel panic",
		"help":    "this text",
		"exit":    "leave the shell",
	}
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(s.out, "  %-8s %s\n", n, cmds[n])
	}
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/1broseidon/multiboxer/internal/config"
	"github.com/1broseidon/multiboxer/internal/ipc"
	"github.com/1broseidon/multiboxer/internal/tui"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "focus":
		os.Exit(runFocus(os.Args[2:]))
	case "next", "prev", "previous":
		os.Exit(runCycle(os.Args[1], os.Args[2:]))
	case "relayout":
		os.Exit(runSimple("relayout", "Re-apply the active template around the foreground slot.", os.Args[2:], ipc.NewClient().Relayout))
	case "reset":
		os.Exit(runSimple("reset", "Force the swap machine back to idle and re-apply the full layout.", os.Args[2:], ipc.NewClient().ForceReset))
	case "launch":
		os.Exit(runLaunch(os.Args[2:]))
	case "attach":
		os.Exit(runAttach(os.Args[2:]))
	case "release":
		os.Exit(runRelease(os.Args[2:]))
	case "template":
		os.Exit(runTemplate(os.Args[2:]))
	case "monitors":
		os.Exit(runMonitors(os.Args[2:]))
	case "recovery":
		os.Exit(runRecovery(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "history":
		os.Exit(runHistory(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: multiboxer <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the multiboxer daemon (foreground)")
	fmt.Fprintln(w, "  status              Show seat status")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  focus N             Bring slot N to the foreground")
	fmt.Fprintln(w, "  next                Focus the next active slot")
	fmt.Fprintln(w, "  prev                Focus the previous active slot")
	fmt.Fprintln(w, "  relayout            Re-apply the active template")
	fmt.Fprintln(w, "  reset               Force reset the swap machine and layout")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  launch [N...]       Start slot clients (all configured when empty)")
	fmt.Fprintln(w, "  attach N PID        Bind a running process to slot N")
	fmt.Fprintln(w, "  release N           Unbind slot N without stopping its process")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  template list       List templates")
	fmt.Fprintln(w, "  template set        Switch the active template")
	fmt.Fprintln(w, "  monitors            List monitors")
	fmt.Fprintln(w, "  recovery enter      Force the swap machine into recovery")
	fmt.Fprintln(w, "  recovery exit       Leave recovery")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  history             Show recent swaps and acquisitions")
	fmt.Fprintln(w, "  tui                 Open the live seat dashboard")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'multiboxer <command> --help' for command-specific options.")
}

// newFlagSet returns a flag set printing usage and description on error.
func newFlagSet(name, usage, description string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: multiboxer "+usage)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, description)
		hasFlags := false
		fs.VisitAll(func(*flag.Flag) { hasFlags = true })
		if hasFlags {
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Flags:")
			fs.PrintDefaults()
		}
	}
	return fs
}

// parse returns -1 when parsing succeeded, else the exit code.
func parse(fs *flag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	return -1
}

func slotArg(fs *flag.FlagSet, i int) (int, bool) {
	id, err := strconv.Atoi(fs.Arg(i))
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "invalid slot %q\n", fs.Arg(i))
		fs.Usage()
		return 0, false
	}
	return id, true
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, err)
	return 1
}

func runStatus(args []string) int {
	fs := newFlagSet("status", "status [--json]", "Show seat status via IPC.")
	jsonOut := fs.Bool("json", false, "Output status as JSON")
	if code := parse(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		return fail(err)
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			return fail(err)
		}
		return 0
	}

	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("template:       %s (%d regions, %d bound)\n", status.Template, status.Capacity, status.Bound)
	fmt.Printf("active:         %d\n", status.Active)
	fmt.Printf("foreground:     %d\n", status.Foreground)
	if status.Deferred {
		fmt.Printf("layout:         deferred\n")
	}
	fmt.Printf("swap_state:     %s\n", status.SwapState)
	if status.RecoveryCause != "" {
		fmt.Printf("recovery_cause: %s\n", status.RecoveryCause)
	}
	fmt.Printf("swaps:          %d completed, %d dropped, %d failed, %d rejected\n",
		status.Completed, status.Dropped, status.Failed, status.Rejected)
	if status.LastSwap != "" {
		fmt.Printf("last_swap:      %s (%s, %d windows)\n", status.LastSwap, status.LastPath, status.LastTouched)
	}
	if status.LastError != "" {
		fmt.Printf("last_error:     %s\n", status.LastError)
	}
	fmt.Printf("previews:       %d visible, %d parked\n", status.Previews, status.Parked)
	fmt.Printf("uptime:         %s\n", status.Uptime)
	if len(status.Slots) > 0 {
		fmt.Println("slots:")
	}
	for _, s := range status.Slots {
		marker := " "
		if s.Foreground {
			marker = "*"
		}
		line := fmt.Sprintf(" %s %2d %-12s %-10s", marker, s.ID, s.Profile, s.State)
		if s.PID > 0 {
			line += fmt.Sprintf(" pid=%d", s.PID)
		}
		if s.Window != 0 {
			line += fmt.Sprintf(" window=0x%x", s.Window)
		}
		if s.Uptime != "" {
			line += " up " + s.Uptime
		}
		if s.LastError != "" {
			line += " error: " + s.LastError
		}
		fmt.Println(line)
	}
	return 0
}

func runFocus(args []string) int {
	fs := newFlagSet("focus", "focus <slot>", "Bring a slot's window to the foreground region.")
	if code := parse(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "focus requires <slot>")
		fs.Usage()
		return 2
	}
	id, ok := slotArg(fs, 0)
	if !ok {
		return 2
	}
	if err := ipc.NewClient().Focus(id); err != nil {
		return fail(err)
	}
	return 0
}

func runCycle(name string, args []string) int {
	direction := "next"
	if name != "next" {
		direction = "previous"
	}
	return runSimple(name, "Focus the "+direction+" active slot, wrapping around.", args, func() error {
		return ipc.NewClient().Cycle(direction)
	})
}

func runSimple(name, description string, args []string, fn func() error) int {
	fs := newFlagSet(name, name, description)
	if code := parse(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", name)
		fs.Usage()
		return 2
	}
	if err := fn(); err != nil {
		return fail(err)
	}
	return 0
}

func runLaunch(args []string) int {
	fs := newFlagSet("launch", "launch [slot...]", "Start the client of each slot (every configured slot when none given).")
	if code := parse(fs, args); code >= 0 {
		return code
	}
	var ids []int
	for i := 0; i < fs.NArg(); i++ {
		id, ok := slotArg(fs, i)
		if !ok {
			return 2
		}
		ids = append(ids, id)
	}
	launched, err := ipc.NewClient().Launch(ids)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("launching slots: %v\n", launched)
	return 0
}

func runAttach(args []string) int {
	fs := newFlagSet("attach", "attach <slot> <pid>", "Bind an already running process to a slot and acquire its window.")
	if code := parse(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "attach requires <slot> <pid>")
		fs.Usage()
		return 2
	}
	id, ok := slotArg(fs, 0)
	if !ok {
		return 2
	}
	pid, err := strconv.Atoi(fs.Arg(1))
	if err != nil || pid <= 0 {
		fmt.Fprintf(os.Stderr, "invalid pid %q\n", fs.Arg(1))
		return 2
	}
	if err := ipc.NewClient().Attach(id, pid); err != nil {
		return fail(err)
	}
	return 0
}

func runRelease(args []string) int {
	fs := newFlagSet("release", "release <slot>", "Unbind a slot's window without stopping its process.")
	if code := parse(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "release requires <slot>")
		fs.Usage()
		return 2
	}
	id, ok := slotArg(fs, 0)
	if !ok {
		return 2
	}
	if err := ipc.NewClient().Release(id); err != nil {
		return fail(err)
	}
	return 0
}

func printTemplateUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  multiboxer template list")
	fmt.Fprintln(w, "  multiboxer template set [--persist] <template>")
}

func runTemplate(args []string) int {
	if len(args) == 0 {
		printTemplateUsage(os.Stderr)
		return 2
	}
	switch args[0] {
	case "help", "-h", "--help":
		printTemplateUsage(os.Stdout)
		return 0

	case "list":
		fs := newFlagSet("list", "template list", "List templates and the active selection.")
		if code := parse(fs, args[1:]); code >= 0 {
			return code
		}
		data, err := ipc.NewClient().ListTemplates()
		if err != nil {
			return fail(err)
		}
		for _, name := range data.Templates {
			marker := " "
			if name == data.Active {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		return 0

	case "set":
		fs := newFlagSet("set", "template set [--persist] <template>", "Switch the daemon's active template and re-apply the layout.")
		persist := fs.Bool("persist", false, "Also write layout.template to the config file")
		if code := parse(fs, args[1:]); code >= 0 {
			return code
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "template set requires <template>")
			fs.Usage()
			return 2
		}
		if err := ipc.NewClient().SetTemplate(fs.Arg(0), *persist); err != nil {
			return fail(err)
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown template subcommand: %s\n\n", args[0])
		printTemplateUsage(os.Stderr)
		return 2
	}
}

func runMonitors(args []string) int {
	fs := newFlagSet("monitors", "monitors", "List monitors with their usable work area.")
	if code := parse(fs, args); code >= 0 {
		return code
	}
	data, err := ipc.NewClient().GetMonitors()
	if err != nil {
		return fail(err)
	}
	for _, m := range data.Monitors {
		primary := ""
		if m.Primary {
			primary = " primary"
		}
		fmt.Printf("%d %s %dx%d+%d+%d usable %dx%d+%d+%d%s\n",
			m.ID, m.Name, m.Width, m.Height, m.X, m.Y,
			m.UsableW, m.UsableH, m.UsableX, m.UsableY, primary)
	}
	return 0
}

func runRecovery(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: multiboxer recovery enter [--reason TEXT] | exit [--failed]")
		return 2
	}
	client := ipc.NewClient()
	switch args[0] {
	case "enter":
		fs := newFlagSet("enter", "recovery enter [--reason TEXT]", "Force the swap machine into recovery; new requests are rejected.")
		reason := fs.String("reason", "", "Reason recorded in status and journal")
		if code := parse(fs, args[1:]); code >= 0 {
			return code
		}
		if err := client.EnterRecovery(*reason); err != nil {
			return fail(err)
		}
		return 0
	case "exit":
		fs := newFlagSet("exit", "recovery exit [--failed]", "Leave recovery and re-apply the layout.")
		failed := fs.Bool("failed", false, "Report the recovery as failed (drops pending work, skips relayout)")
		if code := parse(fs, args[1:]); code >= 0 {
			return code
		}
		if err := client.ExitRecovery(!*failed); err != nil {
			return fail(err)
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown recovery subcommand: %s\n", args[0])
		return 2
	}
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  multiboxer config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  multiboxer config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  multiboxer config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/multiboxer/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("config: ok (%d templates, %d slots)\n", len(res.Config.TemplateNames()), len(res.Config.Slots))
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/multiboxer/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			_ = printEffective // default
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			for _, f := range res.Files {
				fmt.Printf("# source: %s\n", f)
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/multiboxer/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func runTUI(args []string) int {
	fs := newFlagSet("tui", "tui [--path PATH]",
		"Live seat dashboard. Keys: 1-9 focus slot, tab/shift-tab cycle, r relayout, R reset, q quit.")
	path := fs.String("path", "", "Config file path used for template previews")
	if code := parse(fs, args); code >= 0 {
		return code
	}
	if err := tui.Run(*path); err != nil {
		return fail(err)
	}
	return 0
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}

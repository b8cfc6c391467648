package facade

import (
	"strings"
	"sync"

	"github.com/PhilosopherRex/snapper/internal/apperr"
	"github.com/PhilosopherRex/snapper/internal/logging"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

// CommandArgs is the parsed form of a command line (spec §4.6 Commands).
// Positional holds every non-flag token; Options and Flags are filled by
// the minimal tokenizer in parseArgs (SPEC_FULL resolution of Open
// Question (a) — see DESIGN.md); Raw is the whole command line, command
// key included, verbatim for callers that want to parse it themselves.
type CommandArgs struct {
	Positional []string
	Options    map[string]string
	Flags      map[string]bool
	Raw        string
}

// CommandContext is handed to every command handler alongside its args.
type CommandContext struct {
	SessionID string
	Reply     func(text string)
	Progress  func(label string) ProgressTracker
}

// ProgressTracker lets a long-running command report incremental
// progress back to the host.
type ProgressTracker interface {
	Update(fraction float64, message string)
	Done()
}

// CommandResult is what executeCommand always returns, success or not.
type CommandResult struct {
	Success bool
	Message string
	Value   interface{}
}

// CommandHandler implements a registered command.
type CommandHandler func(ctx CommandContext, args CommandArgs) CommandResult

type registeredCommand struct {
	name        string
	description string
	handler     CommandHandler
}

type commandRegistry struct {
	appID string
	mu    sync.Mutex
	byKey map[string]*registeredCommand
}

func newCommandRegistry(appID string) *commandRegistry {
	return &commandRegistry{appID: appID, byKey: make(map[string]*registeredCommand)}
}

func (r *commandRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[string]*registeredCommand)
}

// RegisterCommand stores handler under "<appId>:<name>", gated by
// command:register.
func (f *Facade) RegisterCommand(name, description string, handler CommandHandler) error {
	if err := f.requirePermission(manifest.PermCommandRegister); err != nil {
		return err
	}
	key := f.appID + ":" + name
	r := f.commands
	r.mu.Lock()
	r.byKey[key] = &registeredCommand{name: name, description: description, handler: handler}
	r.mu.Unlock()
	return nil
}

// ExecuteCommand tokenizes line on whitespace, looks up the first token
// verbatim as the command key, parses the remainder into CommandArgs,
// and invokes the handler. Unknown commands and handler panics are both
// reported as a failed CommandResult, never as an error return — this
// matches spec §4.6's "Unknown command -> {success: false, message}".
func (f *Facade) ExecuteCommand(ctx CommandContext, line string) CommandResult {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return CommandResult{Success: false, Message: "empty command line"}
	}
	key := fields[0]
	rest := fields[1:]

	f.commands.mu.Lock()
	cmd, ok := f.commands.byKey[key]
	f.commands.mu.Unlock()
	if !ok {
		logging.Component("facade").Warn().Str("command", key).Msg("unknown command")
		return CommandResult{Success: false, Message: apperr.UnknownMethod(f.appID, key).Error()}
	}

	args := parseArgs(rest, line)
	return safeInvokeCommand(cmd.handler, ctx, args)
}

func safeInvokeCommand(handler CommandHandler, ctx CommandContext, args CommandArgs) (result CommandResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Component("facade").Error().Interface("recovered", rec).Msg("command handler panicked")
			result = CommandResult{Success: false, Message: "command handler panicked"}
		}
	}()
	return handler(ctx, args)
}

// parseArgs implements the minimal --flag value / --flag=value / -f
// tokenizer described in SPEC_FULL.md's resolution of Open Question (a):
// every token starting with "--" or "-" is a flag/option; "--key=value"
// and "-k=value" attach their value directly, "--key value" consumes the
// next token as the value unless that token is itself a flag, and a
// flag with no attached or following value is recorded as a boolean
// Flags entry. Everything else is positional.
func parseArgs(tokens []string, raw string) CommandArgs {
	args := CommandArgs{
		Options: make(map[string]string),
		Flags:   make(map[string]bool),
		Raw:     raw,
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "-") || tok == "-" {
			args.Positional = append(args.Positional, tok)
			continue
		}

		name := strings.TrimLeft(tok, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			args.Options[name[:eq]] = name[eq+1:]
			continue
		}

		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
			args.Options[name] = tokens[i+1]
			i++
			continue
		}

		args.Flags[name] = true
	}

	return args
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrInvalidRegistration reports a command or callback missing its name or handler.
	ErrInvalidRegistration = errors.New("telegram: invalid registration")
	// ErrDuplicate reports a second registration under the same name.
	ErrDuplicate = errors.New("telegram: already registered")
)

// Command is a slash command served by the bot.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are limited to telegram.admin_id and never published.
	AdminOnly bool
	Hidden    bool
}

// Registry holds the slash commands, callback handlers and fallbacks of a bot.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func wireWarn(event string, err error, attrs ...slog.Attr) error {
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, event,
		append(attrs, slog.String("err", err.Error()))...)
	return err
}

// RegisterCommand adds a command under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		return wireWarn("register.command.skip",
			fmt.Errorf("command %q: %w", name, ErrInvalidRegistration), slog.String("name", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		return wireWarn("register.command.duplicate",
			fmt.Errorf("command %q: %w", name, ErrDuplicate), slog.String("name", name))
	}
	r.commands[name] = cmd
	return nil
}

// ListCommands returns commands sorted by name. With visibleOnly, hidden and
// admin commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves message text such as "/start", "start" or
// "/start@somebot args" to its registered command.
func (r *Registry) LookupCommand(text string) (string, Command, bool) {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", Command{}, false
	}
	if name[0] != '/' {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return wireWarn("register.callback.skip",
			fmt.Errorf("callback %q: %w", key, ErrInvalidRegistration), slog.String("cb_key", key))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[key]; ok {
		return wireWarn("register.callback.duplicate",
			fmt.Errorf("callback %q: %w", key, ErrDuplicate), slog.String("cb_key", key))
	}
	r.callbacks[key] = handler
	return nil
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys; nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// CommandLister is the part of tele.Bot that publishes the command menu.
type CommandLister interface {
	SetCommands(opts ...interface{}) error
}

// PublishCommands sets the visible commands as the bot's menu.
func (r *Registry) PublishCommands(api CommandLister) error {
	cmds := r.ListCommands(true)
	if err := api.SetCommands(cmds); err != nil {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelError, "register.commands.publish",
			slog.String("outcome", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("set commands: %w", err)
	}
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelInfo, "register.commands.publish",
		slog.String("outcome", "ok"),
		slog.Int("commands", len(cmds)),
	)
	return nil
}

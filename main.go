package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"community-toolshare/config"
	"community-toolshare/library"
	"community-toolshare/logging"
)

// app is what every command needs once the root command has opened storage.
type app struct {
	configPath string
	as         int64

	cfg *config.Config
	log *zap.Logger
	mgr *library.Manager
}

func main() {
	if err := execute(&app{}, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs the command tree and closes storage whether or not the
// command succeeded.
func execute(a *app, args []string) error {
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "toolshare",
		Short:        "Community tool library: inventory, borrow requests and loans",
		Long:         "Without a subcommand toolshare starts the interactive shell.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(a)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "path to the YAML config file")
	root.PersistentFlags().Int64Var(&a.as, "as", 0, "user id to act as (password is prompted)")

	root.AddCommand(
		newInitCmd(a),
		newToolsCmd(a),
		newUsersCmd(a),
		newLoansCmd(a),
		newRequestsCmd(a),
		newReportsCmd(a),
	)
	return root
}

func (a *app) open() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(*cfg)
	if err != nil {
		return err
	}
	mgr, err := library.Open(*cfg, log)
	if err != nil {
		log.Error("open storage", zap.String("backend", cfg.Backend), zap.Error(err))
		return fmt.Errorf("open storage: %w", err)
	}
	a.cfg, a.log, a.mgr = cfg, log, mgr
	log.Info("toolshare started", zap.String("mode", cfg.Mode), zap.String("backend", cfg.Backend))
	return nil
}

func (a *app) close() {
	if a.mgr != nil {
		if err := a.mgr.Close(); err != nil {
			a.log.Error("close storage", zap.Error(err))
		}
		a.mgr = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
		a.log = nil
	}
}

// readPassword reads a password with masking. TOOLSHARE_PASSWORD is used
// instead when stdin is not a terminal.
func readPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		if pw, ok := os.LookupEnv("TOOLSHARE_PASSWORD"); ok {
			return pw, nil
		}
	}
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

// session logs in as the --as user.
func (a *app) session() (library.Session, error) {
	if a.as < 1 {
		return library.Session{}, errors.New("this command needs --as <user id>")
	}
	pw, err := readPassword(fmt.Sprintf("Password for user %d: ", a.as))
	if err != nil {
		return library.Session{}, fmt.Errorf("failed to read password: %w", err)
	}
	return a.mgr.Login(a.as, pw)
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s id: %q", what, s)
	}
	return id, nil
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}

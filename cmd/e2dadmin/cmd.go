package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/e2dconnect/e2d/internal/backup"
	"github.com/e2dconnect/e2d/internal/database"
	"github.com/e2dconnect/e2d/internal/push"
	"github.com/e2dconnect/e2d/internal/sanction"
	"github.com/e2dconnect/e2d/internal/store"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB
	out    io.Writer
	in     io.Reader
	logger *slog.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  create-admin -email EMAIL [-name NAME]  create an administrator (password prompted)")
	fmt.Fprintln(cli.out, "  export [-o FILE]                        write a JSON backup document (stdout by default)")
	fmt.Fprintln(cli.out, "  import -i FILE                          replace the data with a JSON backup document")
	fmt.Fprintln(cli.out, "  sync-sanctions                          create missing sanctions for match cards")
	fmt.Fprintln(cli.out, "  vapid-keys                              generate a key pair for E2D_VAPID_PUBLIC_KEY/E2D_VAPID_PRIVATE_KEY")
	fmt.Fprintln(cli.out, "  schema                                  print the applied migration version")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "create-admin":
		fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
		fs.SetOutput(cli.out)
		email := fs.String("email", "", "Login email of the new administrator.")
		name := fs.String("name", "Administrateur", "Display name.")
		if err := fs.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *email == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if len(pwd) < 8 {
			return errors.New("password must have at least 8 characters")
		}
		return cli.createAdmin(ctx, *email, *name, pwd)

	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		fs.SetOutput(cli.out)
		output := fs.String("o", "", "Output file. Defaults to stdout.")
		if err := fs.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.export(ctx, *output)

	case "import":
		fs := flag.NewFlagSet("import", flag.ContinueOnError)
		fs.SetOutput(cli.out)
		input := fs.String("i", "", "JSON backup document to restore.")
		if err := fs.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *input == "" {
			fs.Usage()
			return errHelp
		}
		return cli.importFile(ctx, *input)

	case "sync-sanctions":
		return cli.syncSanctions(ctx)

	case "vapid-keys":
		keys, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "E2D_VAPID_PUBLIC_KEY=%s\nE2D_VAPID_PRIVATE_KEY=%s\n", keys.Public, keys.Private)
		return nil

	case "schema":
		current, latest, err := database.SchemaVersion(ctx, cli.db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "schema version: %d (latest %d)\n", current, latest)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

// readPassword prompts on a terminal, or reads one line from a pipe.
func (cli *commandLine) readPassword() (string, error) {
	if f, ok := cli.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(f.Fd()))
		fmt.Fprintln(cli.out)
		return string(pwd), err
	}
	data, err := io.ReadAll(io.LimitReader(cli.in, 1024))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (cli *commandLine) createAdmin(ctx context.Context, email, name, pwd string) error {
	email = store.NormalizeEmail(email)
	existing, err := store.NewUserStore(cli.db).GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("a user with email %s already exists", email)
	}
	u, err := store.CreateAdmin(ctx, cli.db, email, strings.TrimSpace(name), pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "administrator %s created (id %d)\n", u.Email, u.ID)
	return nil
}

func (cli *commandLine) export(ctx context.Context, path string) error {
	doc, err := backup.Export(ctx, cli.db)
	if err != nil {
		return err
	}
	if path == "" {
		return doc.Encode(cli.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := doc.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	cli.logger.Info("export written", "path", path, "records", doc.Records())
	return nil
}

func (cli *commandLine) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := backup.Decode(f)
	if err != nil {
		return err
	}
	if err := backup.Import(ctx, cli.db, doc); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d records; all sessions were closed\n", doc.Records())
	return nil
}

func (cli *commandLine) syncSanctions(ctx context.Context) error {
	syncer := sanction.NewSyncer(store.NewSportStore(cli.db), store.NewSanctionStore(cli.db), cli.logger)
	report, err := syncer.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "sanctions created: %d, skipped: %d, failed: %d\n", report.Created, report.Skipped, len(report.Failed))
	for _, f := range report.Failed {
		fmt.Fprintf(cli.out, "  card %d: %s\n", f.CardID, f.Error)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"ciphercanvas/internal/seal"
)

const (
	Version = "1.0.0"

	// Environment variable for the password
	PasswordEnvVar = "CIPHERCANVAS_PASSWORD"
)

// cli carries the process streams so commands can be exercised in tests.
type cli struct {
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	passwords passwordSource
	sealer    *seal.Sealer
}

func main() {
	c := &cli{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		passwords: terminalPasswords(os.Stderr),
		sealer:    seal.NewDefaultSealer(),
	}
	if err := c.run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) run(args []string) error {
	if len(args) < 1 {
		c.printUsage()
		return fmt.Errorf("no command specified")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "hide":
		return c.runHide(rest)
	case "reveal":
		return c.runReveal(rest)
	case "capacity":
		return c.runCapacity(rest)
	case "serve":
		return c.runServe(rest)
	case "help", "--help", "-h":
		c.printUsage()
		return nil
	case "version", "--version", "-v":
		fmt.Fprintf(c.stderr, "ciphercanvas version %s\n", Version)
		return nil
	default:
		c.printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func (c *cli) printUsage() {
	usage := `ciphercanvas - Hide password-encrypted messages in images

USAGE:
    ciphercanvas <command> [options]

COMMANDS:
    hide        Encrypt a message and hide it in an image
    reveal      Extract and decrypt a hidden message
    capacity    Show how large a message an image can hold
    serve       Run the HTTP API
    help        Show this help message
    version     Show version information

HIDE OPTIONS:
    -i, --input PATH           Carrier image (PNG, JPG, BMP, GIF, TIFF, WEBP)
    -o, --output PATH          Stego image (.png, .bmp or .tiff; default: <input>_stego.png)
    -m, --message TEXT         Message to hide
    -f, --message-file PATH    Read the message from a file ("-" for STDIN)

REVEAL OPTIONS:
    -i, --input PATH           Stego image

SERVE OPTIONS:
    -c, --config PATH          YAML configuration file
        --addr ADDR            Listen address (default: :5000)
        --max-upload-mb N      Upload limit in MB (default: 16)
        --output-format FMT    png, bmp or tiff (default: png)

PASSWORD:
    Set CIPHERCANVAS_PASSWORD environment variable, or enter interactively.

EXAMPLES:
    ciphercanvas hide -i photo.jpg -o photo.png -m "meet at noon"
    ciphercanvas reveal -i photo.png
    echo "secret" | ciphercanvas hide -i cover.png -f - -o out.png
    ciphercanvas serve --addr :8080

NOTES:
    - Messages are encrypted with ChaCha20 under a PBKDF2-derived key
    - Output is always lossless; JPEG or other lossy re-encoding destroys the message
    - There is no integrity tag: a wrong password is detected only heuristically

`
	fmt.Fprint(c.stderr, usage)
}

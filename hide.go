package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ciphercanvas/internal/carrier"
	"ciphercanvas/internal/lsb"
)

func (c *cli) runHide(args []string) error {
	var opts HideOptions
	fs := newFlagSet("hide")
	fs.StringVarP(&opts.Input, "input", "i", "", "Carrier image")
	fs.StringVarP(&opts.Output, "output", "o", "", "Stego image (.png, .bmp or .tiff)")
	fs.StringVarP(&opts.Message, "message", "m", "", "Message to hide")
	fs.StringVarP(&opts.MessageFile, "message-file", "f", "", `Read the message from a file ("-" for STDIN)`)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.Input == "" {
		return fmt.Errorf("input image is required (-i)")
	}
	if opts.Output == "" {
		opts.Output = defaultOutputPath(opts.Input)
	}

	message, err := c.readMessage(opts)
	if err != nil {
		return err
	}

	// Check the output container before any expensive work.
	if _, err := carrier.ParseFormat(filepath.Ext(opts.Output)); err != nil {
		return fmt.Errorf("output %s: %w", opts.Output, err)
	}

	grid, err := carrier.Load(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to load carrier: %w", err)
	}

	password, err := c.passwords.get(true)
	if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}

	blob, err := c.sealer.Encrypt(message, password)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}

	stego, err := lsb.Hide(grid, blob)
	if err != nil {
		return fmt.Errorf("failed to hide message: %w", err)
	}

	if err := carrier.Save(opts.Output, stego); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(c.stderr, "Hid %d bytes in %s (%d of %d bits used)\n",
		len(blob), opts.Output, lsb.NeededBits(uint64(len(blob))), stego.Capacity())
	return nil
}

// readMessage takes the message from --message or --message-file. Surrounding
// whitespace is trimmed and an empty message is rejected.
func (c *cli) readMessage(opts HideOptions) (string, error) {
	if opts.Message != "" && opts.MessageFile != "" {
		return "", fmt.Errorf("use either --message or --message-file, not both")
	}

	message := opts.Message
	if opts.MessageFile != "" {
		var data []byte
		var err error
		if opts.MessageFile == "-" {
			data, err = io.ReadAll(c.stdin)
		} else {
			data, err = os.ReadFile(opts.MessageFile)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read message: %w", err)
		}
		message = string(data)
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("message cannot be empty (-m or -f)")
	}
	return message, nil
}

// defaultOutputPath turns photo.jpg into photo_stego.png next to the input.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_stego" + carrier.FormatPNG.Extension()
}

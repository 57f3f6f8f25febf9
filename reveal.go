package main

import (
	"errors"
	"fmt"

	"ciphercanvas/internal/carrier"
	"ciphercanvas/internal/lsb"
	"ciphercanvas/internal/seal"
)

func (c *cli) runReveal(args []string) error {
	var opts RevealOptions
	fs := newFlagSet("reveal")
	fs.StringVarP(&opts.Input, "input", "i", "", "Stego image")
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.Input == "" {
		return fmt.Errorf("input image is required (-i)")
	}

	grid, err := carrier.Load(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	blob, err := lsb.Extract(grid)
	if err != nil {
		return fmt.Errorf("image does not contain valid hidden data: %w", err)
	}

	password, err := c.passwords.get(false)
	if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}

	message, err := c.sealer.Decrypt(blob, password)
	if err != nil {
		if errors.Is(err, seal.ErrDecryptionFailed) || errors.Is(err, seal.ErrMalformedInput) {
			return fmt.Errorf("decryption failed (wrong password or not a ciphercanvas image?): %w", err)
		}
		return err
	}

	fmt.Fprintln(c.stdout, message)
	return nil
}

func (c *cli) runCapacity(args []string) error {
	var input string
	fs := newFlagSet("capacity")
	fs.StringVarP(&input, "input", "i", "", "Carrier image")
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if input == "" {
		return fmt.Errorf("input image is required (-i)")
	}

	grid, err := carrier.Load(input)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	maxMessage := lsb.MaxPayload(grid) - seal.HeaderLen
	if maxMessage < 0 {
		maxMessage = 0
	}
	fmt.Fprintf(c.stdout, "%dx%d pixels, %d bits capacity, up to %d message bytes\n",
		grid.Width, grid.Height, grid.Capacity(), maxMessage)
	return nil
}

// Command passwd prompts for a password and prints its argon2id hash, for
// seeding accounts directly in the database.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/cryptox"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errMismatch = errors.New("passwords do not match")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(args []string, stdout, prompt io.Writer) error {
	p := cryptox.DefaultParams
	var memory, iterations, parallelism uint

	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	fs.SetOutput(prompt)
	fs.UintVar(&memory, "m", uint(p.Memory), "argon2 memory in KiB")
	fs.UintVar(&iterations, "t", uint(p.Iterations), "argon2 iterations")
	fs.UintVar(&parallelism, "p", uint(p.Parallelism), "argon2 parallelism")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if parallelism == 0 || parallelism > math.MaxUint8 {
		return fmt.Errorf("parallelism must be between 1 and %d, got %d", math.MaxUint8, parallelism)
	}
	if memory == 0 || uint64(memory) > math.MaxUint32 {
		return fmt.Errorf("memory must be between 1 and %d KiB, got %d", uint64(math.MaxUint32), memory)
	}
	if iterations == 0 || uint64(iterations) > math.MaxUint32 {
		return fmt.Errorf("iterations must be between 1 and %d, got %d", uint64(math.MaxUint32), iterations)
	}

	p.Memory = uint32(memory)
	p.Iterations = uint32(iterations)
	p.Parallelism = uint8(parallelism)

	hasher, err := cryptox.NewHasher(p)
	if err != nil {
		return err
	}

	first, err := getPassword(prompt, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(first)

	second, err := getPassword(prompt, "Repeat password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(second)
	if len(first) == 0 {
		return errors.New("password is empty")
	}
	if !bytes.Equal(first, second) {
		return errMismatch
	}

	hash, err := hasher.Hash(string(first))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func getPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("error reading password: %w", err)
	}
	return pw, nil
}

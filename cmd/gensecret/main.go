// Command gensecret prints random hex encoded key suitable for SECRET_KEY
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const defaultKeyLen = 32

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	length := fs.IntP("bytes", "b", defaultKeyLen, "Key length in bytes (HS256 needs at least 32)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *length < 16 {
		return errors.New("key shorter than 16 bytes is too weak")
	}

	key, err := generate(*length)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, key)
	return err
}

func generate(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

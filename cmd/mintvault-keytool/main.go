package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"mintvault/crypto"
	"mintvault/native/sale"
)

const passphraseEnv = "MINTVAULT_KEYSTORE_PASSPHRASE"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "new":
		err = runNew(os.Args[2:])
	case "address":
		err = runAddress(os.Args[2:])
	case "sign-authorization":
		err = runSignAuthorization(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mintvault-keytool <command> [flags]

commands:
  new                 generate a keypair and write an encrypted keystore file
  address             print the bech32 address held by a keystore file
  sign-authorization  sign a one-shot transfer authorization for sale_purchase

The keystore passphrase is read from `+passphraseEnv+`.`)
}

func passphrase() (string, error) {
	pass, ok := os.LookupEnv(passphraseEnv)
	if !ok {
		return "", fmt.Errorf("%s is not set", passphraseEnv)
	}
	return pass, nil
}

func runNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	out := fs.String("out", "./keystore.json", "Path for the keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := passphrase()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return err
	}
	fmt.Printf("keystore: %s\naddress:  %s\n", *out, key.PubKey().Address())
	return nil
}

func runAddress(args []string) error {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	path := fs.String("keystore", "./keystore.json", "Path to the keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := passphrase()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*path, pass)
	if err != nil {
		return err
	}
	fmt.Println(key.PubKey().Address())
	return nil
}

// authorizationOutput matches the authorization object sale_purchase accepts
// for the "authorized" payment mode.
type authorizationOutput struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  int64  `json:"validAfter"`
	ValidBefore int64  `json:"validBefore"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

func runSignAuthorization(args []string) error {
	fs := flag.NewFlagSet("sign-authorization", flag.ExitOnError)
	path := fs.String("keystore", "./keystore.json", "Path to the signer's keystore file")
	to := fs.String("to", "", "Recipient bech32 address")
	value := fs.String("value", "", "Amount to authorize")
	validFor := fs.Duration("valid-for", time.Hour, "Validity window measured from now")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" || *value == "" {
		return fmt.Errorf("-to and -value are required")
	}

	recipient, err := crypto.DecodeAddress(*to)
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	amount, ok := new(big.Int).SetString(*value, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("value must be a positive decimal integer")
	}

	pass, err := passphrase()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*path, pass)
	if err != nil {
		return err
	}

	auth := &sale.TransferAuthorization{
		From:        [20]byte(key.PubKey().Address()),
		To:          [20]byte(recipient),
		Value:       amount,
		ValidAfter:  time.Now().Add(-time.Minute).Unix(),
		ValidBefore: time.Now().Add(*validFor).Unix(),
	}
	if _, err := rand.Read(auth.Nonce[:]); err != nil {
		return err
	}
	digest := auth.Digest()
	sig, err := key.Sign(digest[:])
	if err != nil {
		return err
	}

	out := authorizationOutput{
		From:        crypto.Address(auth.From).String(),
		To:          recipient.String(),
		Value:       amount.String(),
		ValidAfter:  auth.ValidAfter,
		ValidBefore: auth.ValidBefore,
		Nonce:       hex.EncodeToString(auth.Nonce[:]),
		Signature:   hex.EncodeToString(sig),
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

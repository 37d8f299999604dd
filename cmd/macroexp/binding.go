package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"macroexp/internal/driver"
	"macroexp/internal/macros"
)

var bindingCmd = &cobra.Command{
	Use:   "binding",
	Short: "Work with macro implementation bindings",
}

var (
	encodeClass  string
	encodeMethod string
	encodeBundle bool
	encodeSig    string
	encodeOut    string
	decodeJobs   int
)

func init() {
	bindingEncodeCmd.Flags().StringVar(&encodeClass, "class", "", "implementation class name, e.g. lib.Impls$")
	bindingEncodeCmd.Flags().StringVar(&encodeMethod, "method", "", "implementation method name")
	bindingEncodeCmd.Flags().BoolVar(&encodeBundle, "bundle", false, "the implementation is a bundle method")
	bindingEncodeCmd.Flags().StringVar(&encodeSig, "sig", "[]", "signature fingerprints, e.g. [[-1],[-2,-1],[0]]")
	bindingEncodeCmd.Flags().StringVarP(&encodeOut, "output", "o", "", "artifact path (default: <method>"+driver.ArtifactExt+")")
	_ = bindingEncodeCmd.MarkFlagRequired("class")
	_ = bindingEncodeCmd.MarkFlagRequired("method")

	for _, c := range []*cobra.Command{bindingShowCmd, bindingVerifyCmd} {
		c.Flags().IntVarP(&decodeJobs, "jobs", "j", 0, "max parallel decoders (0=GOMAXPROCS)")
	}

	bindingCmd.AddCommand(bindingEncodeCmd, bindingShowCmd, bindingVerifyCmd, bindingListCmd)
}

var bindingEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Write a binding artifact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sig, err := parseSignature(encodeSig)
		if err != nil {
			return err
		}
		b := macros.Binding{
			IsBundle:   encodeBundle,
			ClassName:  norm.NFC.String(encodeClass),
			MethodName: norm.NFC.String(encodeMethod),
			Signature:  sig,
		}
		out := encodeOut
		if out == "" {
			out = b.MethodName + driver.ArtifactExt
		}
		if err := timer.Measure("encode", func() error { return driver.WriteArtifact(out, b) }); err != nil {
			return fmt.Errorf("%s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle("wrote"), out)
		return nil
	},
}

// parseSignature reads the JSON form of the fingerprint lists.
func parseSignature(s string) ([][]macros.Fingerprint, error) {
	var raw [][]int64
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &raw); err != nil {
		return nil, fmt.Errorf("invalid --sig %q: %w", s, err)
	}
	sig := make([][]macros.Fingerprint, len(raw))
	for i, list := range raw {
		sig[i] = make([]macros.Fingerprint, len(list))
		for j, v := range list {
			fp, err := macros.FingerprintFromInt(v)
			if err != nil {
				return nil, fmt.Errorf("invalid --sig: list %d: %w", i, err)
			}
			sig[i][j] = fp
		}
	}
	return sig, nil
}

var bindingShowCmd = &cobra.Command{
	Use:   "show FILE...",
	Short: "Decode binding artifacts and print their fields",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := decodeArtifacts(cmd, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(out)
			}
			renderArtifact(out, r)
		}
		return nil
	},
}

var bindingVerifyCmd = &cobra.Command{
	Use:   "verify FILE...",
	Short: "Check that binding artifacts decode",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := decodeArtifacts(cmd, args)
		if err != nil {
			return err
		}
		failed := renderVerify(cmd.OutOrStdout(), results)
		if failed > 0 {
			return fmt.Errorf("%d of %d binding artifacts failed to decode", failed, len(results))
		}
		return nil
	},
}

var bindingListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List macros with a binding in the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := driver.OpenBindingStore(cfg.Store.Dir)
		if err != nil {
			return err
		}
		names, err := store.Names()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle(fmt.Sprintf("%s (%d)", filepath.Clean(store.Dir()), len(names))))
		for _, n := range names {
			fmt.Fprintf(out, "  %s\n", n)
		}
		if err != nil {
			return errors.Join(errors.New("some store entries are unreadable"), err)
		}
		return nil
	},
}

func decodeArtifacts(cmd *cobra.Command, files []string) ([]driver.ArtifactResult, error) {
	var results []driver.ArtifactResult
	err := timer.Measure("decode", func() error {
		var err error
		results, err = driver.DecodeArtifacts(cmd.Context(), files, decodeJobs)
		return err
	})
	return results, err
}

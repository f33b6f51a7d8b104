package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Urethramancer/x86/disassembler"
)

var (
	bits   int
	origin uint32
)

var rootCmd = &cobra.Command{
	Use:   "dis86 [flags] <image.bin>",
	Short: "Disassemble a flat x86 binary image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		lines, err := disassembler.Disassemble(data, bits, origin)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	},
}

func main() {
	rootCmd.Flags().IntVar(&bits, "bits", 16, "decode mode: 16 or 32")
	rootCmd.Flags().Uint32Var(&origin, "org", 0, "origin address of the image")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Urethramancer/x86/assembler"
	"github.com/Urethramancer/x86/disassembler"
)

var (
	outFile     string
	mbr         bool
	printLabels bool
	listing     bool
)

var rootCmd = &cobra.Command{
	Use:   "asm86 [flags] <source.asm>",
	Short: "Assemble NASM-syntax 16-bit x86 source to a flat binary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		asm := assembler.New()
		res, err := asm.Assemble(string(data))
		if err != nil {
			return err
		}

		img := res.Image
		if mbr {
			if len(img) > 510 {
				return fmt.Errorf("image is %d bytes; an MBR allows 510", len(img))
			}
			padded := make([]byte, 512)
			copy(padded, img)
			padded[510] = 0x55
			padded[511] = 0xAA
			img = padded
		}

		if err := os.WriteFile(outFile, img, 0644); err != nil {
			return err
		}

		if printLabels {
			names := make([]string, 0, len(res.Labels))
			for name := range res.Labels {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				if res.Labels[names[i]] != res.Labels[names[j]] {
					return res.Labels[names[i]] < res.Labels[names[j]]
				}
				return names[i] < names[j]
			})
			for _, name := range names {
				fmt.Printf("%08X  %s\n", res.Labels[name], name)
			}
		}

		if listing {
			lines, err := disassembler.Disassemble(res.Image, 16, res.Origin)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Println(l)
			}
		}
		return nil
	},
}

func main() {
	rootCmd.Flags().StringVarP(&outFile, "out", "o", "out.bin", "output file")
	rootCmd.Flags().BoolVar(&mbr, "mbr", false, "pad to 510 bytes and append the 55 AA boot signature")
	rootCmd.Flags().BoolVar(&printLabels, "labels", false, "print the label map")
	rootCmd.Flags().BoolVar(&listing, "listing", false, "print a disassembly listing of the image")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

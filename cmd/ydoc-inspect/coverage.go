package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Adapted from the teacher's tools/gotest_coverage.go, which parsed a
// `go test -coverprofile` file and rendered a per-package bar chart as
// a standalone exclude_from_tests script. Folded in here as a real
// subcommand rather than left as a second, unreachable copy.

const (
	covColorReset  = "\033[0m"
	covColorBold   = "\033[1m"
	covColorRed    = "\033[31m"
	covColorGreen  = "\033[32m"
	covColorYellow = "\033[33m"

	covLineWidth = 107
)

var coverageCmd = &cobra.Command{
	Use:   "coverage <coverage.txt>",
	Short: "Render a per-package coverage bar chart from a go test -coverprofile file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return renderCoverage(f)
	},
}

type coverageBlockKey struct {
	file  string
	start string
	end   string
}

type coveragePackageStat struct {
	covered, total float64
}

func coveragePackage(path string) string {
	dirs := strings.Split(filepath.ToSlash(path), "/")
	if len(dirs) <= 1 {
		return "."
	}
	return strings.Join(dirs[:len(dirs)-1], "/")
}

func coverageColor(percent float64) string {
	switch {
	case percent >= 80:
		return covColorGreen
	case percent >= 50:
		return covColorYellow
	default:
		return covColorRed
	}
}

func coverageBar(percent float64) string {
	blocks := int(percent / 4)
	return strings.Repeat("█", blocks) + strings.Repeat("░", 25-blocks)
}

func renderCoverage(f *os.File) error {
	scanner := bufio.NewScanner(f)
	byPackage := make(map[string]*coveragePackageStat)
	seen := make(map[coverageBlockKey]bool)
	var totalCovered, totalStatements float64

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "mode:") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		filename, rest := parts[0], parts[1]
		fields := strings.Fields(rest)
		if len(fields) != 3 {
			continue
		}

		block := coverageBlockKey{file: filename, start: fields[0], end: fields[1]}
		if seen[block] {
			continue
		}
		seen[block] = true

		statements, err1 := strconv.ParseFloat(fields[1], 64)
		count, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		covered := 0.0
		if count > 0 {
			covered = statements
		}

		pkg := coveragePackage(filename)
		stat, ok := byPackage[pkg]
		if !ok {
			stat = &coveragePackageStat{}
			byPackage[pkg] = stat
		}
		stat.total += statements
		stat.covered += covered
		totalStatements += statements
		totalCovered += covered
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("\n%s📦 PACKAGE COVERAGE REPORT%s\n\n", covColorBold, covColorReset)
	fmt.Printf("%s%-70s %-10s %s%s\n", covColorBold, "Package", "Coverage", "Bar", covColorReset)
	fmt.Println(strings.Repeat("─", covLineWidth))

	packages := make([]string, 0, len(byPackage))
	for pkg := range byPackage {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)

	for _, pkg := range packages {
		stat := byPackage[pkg]
		pct := 100.0 * stat.covered / stat.total
		fmt.Printf("%-70s %s%6.1f%%%s   %s\n", pkg, coverageColor(pct), pct, covColorReset, coverageBar(pct))
	}

	overall := 100.0 * totalCovered / totalStatements
	fmt.Println(strings.Repeat("─", covLineWidth))
	fmt.Printf("%s%-70s%s %s%6.2f%%%s   %s\n\n", covColorYellow, "TOTAL COVERAGE", covColorReset,
		coverageColor(overall), overall, covColorReset, coverageBar(overall))
	return nil
}

// Package info implements the 'revctl info' subcommand.
package info

import (
	"fmt"
	"strconv"

	hoststat "github.com/likexian/host-stat-go"
	"github.com/spf13/cobra"

	"github.com/wyrdlab/reverie/pkg/cli/genericclioptions"
)

// NewCmdInfo returns the 'info' subcommand.
func NewCmdInfo(streams genericclioptions.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:                   "info",
		DisableFlagsInUseLine: true,
		Short:                 "Print host information",
		RunE: func(cmd *cobra.Command, args []string) error {
			hostInfo, err := hoststat.GetHostInfo()
			if err != nil {
				return fmt.Errorf("get host info: %w", err)
			}
			memStat, err := hoststat.GetMemStat()
			if err != nil {
				return fmt.Errorf("get mem stat: %w", err)
			}
			cpuInfo, err := hoststat.GetCPUInfo()
			if err != nil {
				return fmt.Errorf("get cpu info: %w", err)
			}

			fmt.Fprintf(streams.Out, "%12s %s\n", "HostName:", hostInfo.HostName)
			fmt.Fprintf(streams.Out, "%12s %s %s\n", "OSRelease:", hostInfo.Release, hostInfo.OSBit)
			fmt.Fprintf(streams.Out, "%12s %d\n", "CPUCore:", cpuInfo.CoreCount)
			fmt.Fprintf(streams.Out, "%12s %sM\n", "MemTotal:", strconv.FormatUint(memStat.MemTotal, 10))
			fmt.Fprintf(streams.Out, "%12s %sM\n", "MemFree:", strconv.FormatUint(memStat.MemFree, 10))
			return nil
		},
	}
}

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/momentics/hioload-sql/client"
	"github.com/momentics/hioload-sql/protocol"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newQueryCommand sends each argument as one request. Without arguments it
// reads requests line by line from stdin until EOF or "exit".
func newQueryCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [request...]",
		Short: "Send requests to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			timeout := v.GetDuration("timeout")
			c, err := client.DialConfig(ctx, client.Config{
				Addr:         v.GetString("server"),
				DialTimeout:  timeout,
				DialAttempts: v.GetInt("dial-attempts"),
			})
			if err != nil {
				return err
			}
			defer c.Exit()

			out := cmd.OutOrStdout()
			send := func(req string) error {
				if protocol.IsExit(req) {
					return errExit
				}
				qctx, cancel := ctx, context.CancelFunc(func() {})
				if timeout > 0 {
					qctx, cancel = context.WithTimeout(ctx, timeout)
				}
				defer cancel()
				resp, err := c.Query(qctx, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, resp)
				return err
			}

			if len(args) > 0 {
				for _, req := range args {
					if err := send(req); err != nil {
						return ignoreExit(err)
					}
				}
				return nil
			}
			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				req := strings.TrimSpace(sc.Text())
				if req == "" {
					continue
				}
				if err := send(req); err != nil {
					return ignoreExit(err)
				}
			}
			return sc.Err()
		},
	}
	flags := cmd.Flags()
	flags.StringP("server", "s", "127.0.0.1:5050", "server address")
	flags.Duration("timeout", 10*time.Second, "dial and per-request timeout (0 disables)")
	flags.Int("dial-attempts", 1, "connection attempts before giving up")
	mustBind(v, flags, "server", "timeout", "dial-attempts")
	return cmd
}

var errExit = errors.New("exit requested")

func ignoreExit(err error) error {
	if errors.Is(err, errExit) {
		return nil
	}
	return err
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/cim/publish"
)

func pushCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push [image]",
		Short: "Upload a sealed image file set to S3-compatible storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := a.newPublisher()
			if err != nil {
				return err
			}
			return pub.Push(cmd.Context(), a.cfg.Root, args[0])
		},
	}
}

func pullCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull [image]",
		Short: "Download an image file set into the root directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := a.newPublisher()
			if err != nil {
				return err
			}
			return pub.Pull(cmd.Context(), a.cfg.Root, args[0])
		},
	}
}

func (a *app) newPublisher() (*publish.Publisher, error) {
	s3 := a.cfg.S3
	if s3.Endpoint == "" || s3.Bucket == "" {
		return nil, fmt.Errorf("push/pull requires the [s3] endpoint and bucket in the config file")
	}

	return publish.NewPublisher(publish.Config{
		Endpoint:  s3.Endpoint,
		Bucket:    s3.Bucket,
		AccessKey: s3.AccessKey,
		SecretKey: s3.SecretKey,
		UseSSL:    s3.UseSSL,
		Prefix:    s3.Prefix,
	}, a.lg)
}

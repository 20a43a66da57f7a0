package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/cim"
)

func newCommand(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "new [objects...]",
		Short: "Create and build a new image",
		Long: `Create and build a new composite image in the root directory.

Each object argument is a file or directory path. The relative path inside
the image is derived from the path as given: "../src/file.txt" becomes
"src\file.txt", with ancestor directories added automatically. The command
fails if an image with the same name already exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.buildImage(name, "", args)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "name of the image, e.g. image.cim")
	cmd.MarkFlagRequired("name")

	return cmd
}

func forkCommand(a *app) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "fork [objects...]",
		Short: "Create a new image based on an existing image",
		Long: `Create a new composite image that inherits the contents of an existing
image in the same root directory. Objects given on the command line are added
on top; a path already present in the base image is overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.buildImage(to, from, args)
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "name of the existing base image")
	cmd.Flags().StringVarP(&to, "to", "t", "", "name of the new image")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

// buildImage creates the image, adds every named object together with its
// ancestor directories in parent-before-child order and commits.
func (a *app) buildImage(name, base string, objects []string) error {
	if err := enableBuildPrivileges(); err != nil {
		a.lg.Warn("unable to enable backup privileges: %v", err)
	}

	set := cim.NewObjectSet()
	for _, src := range objects {
		obj := cim.NewObject(src)
		ancestors, err := obj.ResolveRelativePath(true)
		if err != nil {
			return err
		}
		set.Merge(ancestors)
		set.Insert(obj)
	}

	img := cim.NewImage(a.cfg.Root, name, cim.WithLogger(a.lg))
	if err := img.Create(base); err != nil {
		return err
	}
	defer img.Close()

	for _, obj := range set.Items() {
		a.lg.Info("adding %s", obj)
		if err := img.AddObject(obj); err != nil {
			return err
		}
	}

	if err := img.Commit(); err != nil {
		return err
	}

	fmt.Println(name)
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwantia/cim"
)

func mountCommand(a *app) *cobra.Command {
	var (
		volume   string
		mountvol string
	)

	cmd := &cobra.Command{
		Use:   "mount [image]",
		Short: "Mount an image as a read-only volume",
		Long: `Mount a committed image from the root directory as a read-only volume
and print the volume path to stdout. The mount is recorded in the mount
registry; mounting the same image again reuses the existing volume and
increments its reference count.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]
			imagePath := filepath.Join(a.cfg.Root, name)

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			// An existing record means the volume is already mounted; only
			// bump the reference count.
			if rec, err := store.Lookup(ctx, imagePath); err == nil {
				if _, err := store.Record(ctx, imagePath, rec.VolumeID); err != nil {
					return err
				}
				id, err := cim.ParseVolumeID(rec.VolumeID)
				if err != nil {
					return err
				}
				fmt.Println(cim.VolumePath(id))
				return nil
			}

			vol := cim.NewVolume(a.cfg.Root, name, cim.WithLogger(a.lg))
			id, err := vol.Mount(volume)
			if err != nil {
				return err
			}

			if _, err := store.Record(ctx, imagePath, id.String()); err != nil {
				a.lg.Warn("volume mounted but not recorded: %v", err)
			}

			fmt.Println(cim.VolumePath(id))

			if mountvol != "" {
				if err := vol.MountVolume(mountvol); err != nil {
					return err
				}
				a.lg.Info("volume available at %s", mountvol)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&volume, "volume", "v", "", "volume GUID to mount at (generated if empty)")
	cmd.Flags().StringVarP(&mountvol, "mountvol", "m", "", "local path to attach the volume to")

	return cmd
}

func dismountCommand(a *app) *cobra.Command {
	var volume string

	cmd := &cobra.Command{
		Use:   "dismount [image]",
		Short: "Dismount a mounted image",
		Long: `Release one reference to a mounted image and dismount its volume once
the reference count reaches zero. With --volume the volume is dismounted
directly, bypassing the registry; the identifier may be given as
Volume{guid}, {guid} or a bare guid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if volume != "" {
				return cim.Dismount(volume, cim.WithLogger(a.lg))
			}
			if len(args) != 1 {
				return fmt.Errorf("an image name or --volume is required")
			}

			ctx := cmd.Context()
			imagePath := filepath.Join(a.cfg.Root, args[0])

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			rec, err := store.Lookup(ctx, imagePath)
			if err != nil {
				return err
			}

			remaining, err := store.Release(ctx, imagePath)
			if err != nil {
				return err
			}
			if remaining > 0 {
				a.lg.Info("image %q still referenced %d time(s)", args[0], remaining)
				return nil
			}

			return cim.Dismount(rec.VolumeID, cim.WithLogger(a.lg))
		},
	}

	cmd.Flags().StringVarP(&volume, "volume", "v", "", "dismount this volume directly")

	return cmd
}

func mountsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mounts",
		Short: "List recorded image mounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			records, err := store.List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IMAGE\tVOLUME\tREFS\tMOUNTED")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					rec.ImagePath, rec.VolumeID, rec.RefCount,
					rec.MountedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

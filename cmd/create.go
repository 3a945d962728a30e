package cmd

import (
	"fmt"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/roomlink"
	"github.com/BioHazard786/Warpmeet/internal/ui"
	"github.com/spf13/cobra"
)

var flagMemorable bool

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a new meeting room and print its link",
	Long: `Create a new meeting room ID and print the link to share.

Rooms open when the first participant joins.

Examples:
  warpmeet create
  warpmeet create --memorable`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var id domain.RoomID
		if flagMemorable {
			id = roomlink.Memorable()
		} else {
			id = roomlink.Generate()
		}

		fmt.Println(ui.NewRoomInfo(string(id), cfg.RoomLink(string(id))).View())
		return nil
	},
}

func init() {
	createCmd.Flags().BoolVarP(&flagMemorable, "memorable", "m", false, "Use a four-word room name")
	rootCmd.AddCommand(createCmd)
}

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	chatPhone string
	chatName  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation with the sales assistant",
	Long: `Start an interactive conversation as a client. Messages and replies are
persisted, so later interest analysis sees them.

Examples:
  ventas chat --phone +5491155550000
  ventas chat --phone +5491155550000 --name "Juan Pérez"`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatPhone, "phone", "", "client phone number (required)")
	chatCmd.Flags().StringVar(&chatName, "name", "", "client display name")
	chatCmd.MarkFlagRequired("phone")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.handle.Get().Len() == 0 {
		fmt.Println("Index is empty; run 'ventas refresh' first for product-aware replies.")
	}

	fmt.Println("Escribe tu mensaje (Ctrl-D para salir):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		reply, err := a.chat.HandleMessage(cmd.Context(), chatPhone, chatName, message)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("Bot: %s\n", reply.Text)
	}
	return scanner.Err()
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/statesync/internal/apiclient"
)

func newPromptsCmd(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage saved prompts",
	}
	cmd.AddCommand(newPromptsListCmd(flags))
	cmd.AddCommand(newPromptsGetCmd(flags))
	cmd.AddCommand(newPromptsCreateCmd(flags))
	cmd.AddCommand(newPromptsUpdateCmd(flags))
	cmd.AddCommand(newPromptsDeleteCmd(flags))
	cmd.AddCommand(newPromptsAttachCmd(flags))
	cmd.AddCommand(newPromptsDetachCmd(flags))
	return cmd
}

func newPromptsListCmd(flags *clientFlags) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			var prompts []apiclient.Prompt
			if project != "" {
				prompts, err = session.API().ListProjectPrompts(cmd.Context(), project)
			} else {
				prompts, err = session.API().ListPrompts(cmd.Context())
			}
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, prompts)
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "only prompts attached to this project")
	return cmd
}

func newPromptsGetCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <prompt-id>",
		Short: "Print one prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			prompt, err := session.API().GetPrompt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, prompt)
		},
	}
}

func newPromptsCreateCmd(flags *clientFlags) *cobra.Command {
	var in apiclient.CreatePromptInput
	var contentFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				content, err := readContent(cmd.InOrStdin(), contentFile)
				if err != nil {
					return err
				}
				in.Content = content
			}
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			prompt, err := session.API().CreatePrompt(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, prompt)
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "prompt name")
	cmd.Flags().StringVar(&in.Content, "content", "", "prompt content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "read content from a file (- for stdin)")
	cmd.Flags().StringVarP(&in.ProjectID, "project", "p", "", "attach to this project")
	return cmd
}

func newPromptsUpdateCmd(flags *clientFlags) *cobra.Command {
	var name, content, contentFile string
	cmd := &cobra.Command{
		Use:   "update <prompt-id>",
		Short: "Change a prompt's name or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in apiclient.UpdatePromptInput
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if cmd.Flags().Changed("content") {
				in.Content = &content
			}
			if contentFile != "" {
				data, err := readContent(cmd.InOrStdin(), contentFile)
				if err != nil {
					return err
				}
				in.Content = &data
			}
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			prompt, err := session.API().UpdatePrompt(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, prompt)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "read new content from a file (- for stdin)")
	return cmd
}

func newPromptsDeleteCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <prompt-id>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.API().DeletePrompt(cmd.Context(), args[0])
		},
	}
}

func newPromptsAttachCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <project-id> <prompt-id>",
		Short: "Attach a prompt to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.API().AddPromptToProject(cmd.Context(), args[0], args[1])
		},
	}
}

func newPromptsDetachCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "detach <project-id> <prompt-id>",
		Short: "Detach a prompt from a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.API().RemovePromptFromProject(cmd.Context(), args[0], args[1])
		},
	}
}

func readContent(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("content is empty")
	}
	return string(data), nil
}

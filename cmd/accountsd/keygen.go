// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aetherforge/accounts/internal/certauth"
	"github.com/aetherforge/accounts/internal/config"
)

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the session signing authority",
		Long: `Generate the Ed25519 signing authority used to sign session
certificates and write it to the keys directory. Refuses to overwrite an
existing authority unless --force is given; rotating the authority
invalidates every outstanding session certificate.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd, force)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing authority")

	return cmd
}

func runKeygen(cmd *cobra.Command, force bool) error {
	cfg, err := config.Load(resolveConfigPath(), cmd.Flags())
	if err != nil {
		return err
	}

	if !force {
		if _, err := certauth.LoadAuthority(cfg.Keys.Dir); err == nil {
			return oops.Code("AUTHORITY_EXISTS").
				With("keys_dir", cfg.Keys.Dir).
				Errorf("signing authority already exists; use --force to replace it")
		}
	}

	authority, err := certauth.GenerateAuthority(authorityName)
	if err != nil {
		return oops.Code("AUTHORITY_GENERATE_FAILED").Wrap(err)
	}
	if err := certauth.SaveAuthority(cfg.Keys.Dir, authority); err != nil {
		return oops.Code("AUTHORITY_SAVE_FAILED").
			With("keys_dir", cfg.Keys.Dir).
			Wrap(err)
	}

	cmd.Printf("Signing authority written to %s\n", cfg.Keys.Dir)
	return nil
}

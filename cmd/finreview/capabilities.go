package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"finreview/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate <value>",
	Short: "Validate a single field value",
	Long: `Validate a single field value against the format rules.

Examples:
  # Check an NRIC
  finreview validate --type nric S1234567A

  # Ask the language model as well
  finreview validate --type occupation --semantic "taxi drvr"`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var standardizeCmd = &cobra.Command{
	Use:   "standardize <text>",
	Short: "Standardize free text",
	Args:  cobra.ExactArgs(1),
	RunE:  runStandardize,
}

var mapCmd = &cobra.Command{
	Use:   "map <json-file>",
	Short: "Map extracted JSON onto form fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runMap,
}

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract a financial record from a form image",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	f := validateCmd.Flags()
	f.String("type", "", "field type (nric, email, phone, postalCode, income, relationship)")
	f.String("name", "", "field name passed to semantic validation")
	f.Bool("semantic", false, "also run language model validation")

	standardizeCmd.Flags().String("type", "", "field type the text belongs to")
	standardizeCmd.Flags().Bool("rules-only", false, "skip the language model")

	rootCmd.AddCommand(validateCmd, standardizeCmd, mapCmd, extractCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	fieldType, _ := cmd.Flags().GetString("type")
	name, _ := cmd.Flags().GetString("name")
	semantic, _ := cmd.Flags().GetBool("semantic")
	if name == "" {
		name = fieldType
	}

	svc, err := capabilities(semantic)
	if err != nil {
		return err
	}
	res := svc.ValidateField(cmd.Context(), validator.FieldRequest{
		Value:     args[0],
		FieldName: name,
		FieldType: fieldType,
		RulesOnly: !semantic,
	}, nil, "")
	return writeJSON(cmd.OutOrStdout(), res.ValidationResult)
}

func runStandardize(cmd *cobra.Command, args []string) error {
	fieldType, _ := cmd.Flags().GetString("type")
	rulesOnly, _ := cmd.Flags().GetBool("rules-only")

	svc, err := capabilities(!rulesOnly)
	if err != nil {
		return err
	}
	out := svc.Standardize(cmd.Context(), args[0], fieldType, rulesOnly)
	return writeJSON(cmd.OutOrStdout(), out)
}

func runMap(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return eris.Wrapf(err, "read %s", args[0])
	}
	svc, err := capabilities(cfg.Extraction.SmartMapping)
	if err != nil {
		return err
	}
	res, err := svc.SmartMap(cmd.Context(), json.RawMessage(data))
	if err != nil {
		return eris.Wrapf(err, "map %s", args[0])
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func runExtract(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return eris.Wrapf(err, "read %s", args[0])
	}
	svc, err := capabilities(true)
	if err != nil {
		return err
	}
	out, err := svc.Extract(cmd.Context(), args[0], data)
	if err != nil {
		return eris.Wrapf(err, "extract %s", args[0])
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/directord/directord/pkg/security"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage the TLS certificate authority",
	Long:  `Bootstrap a root CA and issue node/client certificates for the transport's TLS layer (config.TLSCertFile, TLSKeyFile, TLSCAFile).`,
}

var certInitCmd = &cobra.Command{
	Use:   "init <ca-dir>",
	Short: "Generate a new root CA and save it to ca-dir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, _ := cmd.Flags().GetString("passphrase")

		ca, err := security.NewCertAuthority(passphrase)
		if err != nil {
			return fmt.Errorf("creating CA: %w", err)
		}
		if err := ca.Initialize(); err != nil {
			return fmt.Errorf("generating root CA: %w", err)
		}

		caDir := args[0]
		if err := os.MkdirAll(caDir, 0o700); err != nil {
			return fmt.Errorf("creating CA directory: %w", err)
		}
		if err := ca.SaveToFile(caDir); err != nil {
			return fmt.Errorf("saving CA: %w", err)
		}

		fmt.Printf("Root CA written to %s\n", caDir)
		return nil
	},
}

var certIssueCmd = &cobra.Command{
	Use:   "issue <ca-dir> <out-dir>",
	Short: "Issue a node or client certificate from a root CA",
	Long: `Issues a leaf certificate signed by the CA in ca-dir and writes
node.crt/node.key/ca.crt to out-dir, the layout config.TLSCertFile,
TLSKeyFile and TLSCAFile expect.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caDir, outDir := args[0], args[1]
		passphrase, _ := cmd.Flags().GetString("passphrase")
		role, _ := cmd.Flags().GetString("role")
		id, _ := cmd.Flags().GetString("id")
		client, _ := cmd.Flags().GetBool("client")
		dnsNames, _ := cmd.Flags().GetStringSlice("dns")
		ipStrs, _ := cmd.Flags().GetStringSlice("ip")

		if id == "" {
			return fmt.Errorf("--id is required")
		}

		ca, err := security.NewCertAuthority(passphrase)
		if err != nil {
			return fmt.Errorf("creating CA: %w", err)
		}
		if err := ca.LoadFromFile(caDir); err != nil {
			return fmt.Errorf("loading CA from %s: %w", caDir, err)
		}

		var cert *tls.Certificate
		if client {
			c, err := ca.IssueClientCertificate(id)
			if err != nil {
				return fmt.Errorf("issuing client certificate: %w", err)
			}
			cert = c
		} else {
			ips := make([]net.IP, 0, len(ipStrs))
			for _, s := range ipStrs {
				ip := net.ParseIP(s)
				if ip == nil {
					return fmt.Errorf("invalid IP address %q", s)
				}
				ips = append(ips, ip)
			}
			c, err := ca.IssueNodeCertificate(id, role, dnsNames, ips)
			if err != nil {
				return fmt.Errorf("issuing node certificate: %w", err)
			}
			cert = c
		}

		if err := os.MkdirAll(outDir, 0o700); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := security.SaveCertToFile(cert, outDir); err != nil {
			return fmt.Errorf("saving certificate: %w", err)
		}
		if err := security.SaveCACertToFile(ca.GetRootCACert(), outDir); err != nil {
			return fmt.Errorf("saving CA certificate: %w", err)
		}

		fmt.Printf("Certificate for %q written to %s (cert=%s key=%s ca=%s)\n",
			id, outDir,
			filepath.Join(outDir, "node.crt"),
			filepath.Join(outDir, "node.key"),
			filepath.Join(outDir, "ca.crt"))
		return nil
	},
}

var certInfoCmd = &cobra.Command{
	Use:   "info <cert-dir>",
	Short: "Print details about an issued certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cert, err := security.LoadCertFromFile(args[0])
		if err != nil {
			return fmt.Errorf("loading certificate: %w", err)
		}

		info := security.GetCertInfo(cert.Leaf)
		keys := []string{"subject", "issuer", "serial_number", "not_before", "not_after", "is_ca", "key_usage", "ext_key_usage"}
		for _, k := range keys {
			fmt.Printf("%-14s %v\n", k+":", info[k])
		}
		if security.CertNeedsRotation(cert.Leaf) {
			fmt.Println("\nThis certificate is within 30 days of expiry and should be rotated.")
		}
		return nil
	},
}

func init() {
	certInitCmd.Flags().String("passphrase", "", "Encrypt the CA's root private key at rest with this passphrase")

	certIssueCmd.Flags().String("passphrase", "", "Passphrase protecting the CA's root private key")
	certIssueCmd.Flags().String("role", "worker", "Node role for a node certificate (coordinator, worker)")
	certIssueCmd.Flags().String("id", "", "Node or client identity the certificate is issued for")
	certIssueCmd.Flags().Bool("client", false, "Issue a client certificate instead of a node certificate")
	certIssueCmd.Flags().StringSlice("dns", nil, "DNS names for a node certificate")
	certIssueCmd.Flags().StringSlice("ip", nil, "IP addresses for a node certificate")

	certCmd.AddCommand(certInitCmd, certIssueCmd, certInfoCmd)
	rootCmd.AddCommand(certCmd)
}

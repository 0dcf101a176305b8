package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"community-toolshare/config"
	"community-toolshare/library"
	"community-toolshare/logging"
	"community-toolshare/storage"
)

type catalog struct {
	Admin catalogUser   `yaml:"admin"`
	Users []catalogUser `yaml:"users"`
	Tools []catalogTool `yaml:"tools"`
}

type catalogUser struct {
	Names    string `yaml:"names"`
	Surnames string `yaml:"surnames"`
	Phone    string `yaml:"phone"`
	Address  string `yaml:"address"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
}

func (u catalogUser) input() library.UserInput {
	return library.UserInput{
		Names:    u.Names,
		Surnames: u.Surnames,
		Phone:    u.Phone,
		Address:  u.Address,
		Role:     library.Role(u.Role),
		Password: u.Password,
	}
}

type catalogTool struct {
	Name     string  `yaml:"name"`
	Category string  `yaml:"category"`
	Quantity int     `yaml:"quantity"`
	Status   string  `yaml:"status"`
	Value    float64 `yaml:"estimated_value"`
}

func main() {
	var (
		configPath  string
		catalogPath string
		fresh       bool
	)
	cmd := &cobra.Command{
		Use:          "seed_tools",
		Short:        "Load a YAML catalog of tools and users into an empty tool library",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed(configPath, catalogPath, fresh)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")
	cmd.Flags().StringVar(&catalogPath, "catalog", "seed/catalog.yaml", "catalog to import")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "delete existing data before seeding")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func seed(configPath, catalogPath string, fresh bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if fresh {
		fmt.Println("Cleaning up existing data files...")
		for _, file := range dataFiles(cfg) {
			if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
			}
		}
		fmt.Println("Data cleanup complete.")
	}

	buf, err := os.ReadFile(catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var cat catalog
	if err := yaml.Unmarshal(buf, &cat); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	log, err := logging.New(*cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	gw, err := library.OpenGateway(*cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	mgr := library.NewManager(gw, library.Options{
		Logger:            log,
		DefaultLoanDays:   cfg.DefaultLoanDays,
		LowStockThreshold: cfg.LowStockThreshold,
	})
	defer mgr.Close()

	admin, err := mgr.Bootstrap(cat.Admin.input())
	if err != nil {
		if errors.Is(err, library.ErrInvalidState) {
			return fmt.Errorf("%w (run with --fresh to start over)", err)
		}
		return fmt.Errorf("create administrator: %w", err)
	}
	sess, err := mgr.Login(admin.ID, cat.Admin.Password)
	if err != nil {
		return err
	}
	fmt.Printf("Administrator %s created with ID %d\n", admin.FullName(), admin.ID)

	successCount, errorCount := 0, 0

	fmt.Printf("Importing %d user(s)...\n", len(cat.Users))
	for _, cu := range cat.Users {
		fmt.Printf("Importing: %s %s... ", cu.Names, cu.Surnames)
		u, err := mgr.AddUser(sess, cu.input())
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", u.ID)
		successCount++
	}

	fmt.Printf("Importing %d tool(s)...\n", len(cat.Tools))
	for _, ct := range cat.Tools {
		fmt.Printf("Importing: %s x%d... ", ct.Name, ct.Quantity)
		t, err := mgr.AddTool(sess, ct.Name, ct.Category, ct.Quantity, library.ToolStatus(ct.Status), ct.Value)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", t.ID)
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d records\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	tools, err := mgr.Tools.List(false)
	if err != nil {
		fmt.Printf("Error retrieving tools: %v\n", err)
	} else if len(tools) > 0 {
		fmt.Println("\nInventory:")
		fmt.Printf("%-3s %-40s %-20s %s\n", "ID", "Name", "Category", "Units")
		fmt.Println(strings.Repeat("-", 75))
		for _, t := range tools {
			fmt.Printf("%-3d %-40s %-20s %d\n", t.ID, truncateString(t.Name, 40), truncateString(t.Category, 20), t.TotalQuantity)
		}
	}

	if sg, ok := gw.(*storage.SQLiteGateway); ok {
		names, err := sg.Collections()
		if err == nil {
			fmt.Printf("\nStored collections: %s\n", strings.Join(names, ", "))
		}
	}
	return nil
}

// dataFiles lists what --fresh removes for the configured backend.
func dataFiles(cfg *config.Config) []string {
	if cfg.Backend == config.BackendSQLite {
		return []string{cfg.SQLitePath, cfg.SQLitePath + "-shm", cfg.SQLitePath + "-wal"}
	}
	var files []string
	for _, c := range []string{storage.Tools, storage.Users, storage.Loans, storage.Solicitations} {
		files = append(files, filepath.Join(cfg.DataDir, c+".json"))
	}
	return files
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phenrril/attarstore/internal/adapters/sheet"
	"github.com/phenrril/attarstore/internal/domain"
	"github.com/phenrril/attarstore/internal/usecase"
)

var (
	exportFile string
	listKind   string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the product catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the normalized catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, release, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		defer release()
		kind := domain.KindAll
		for _, k := range []domain.Kind{domain.KindPerfume, domain.KindAttar} {
			if strings.EqualFold(listKind, string(k)) {
				kind = k
			}
		}
		for _, p := range page.Filter(kind) {
			fmt.Printf("%-12s %-8s %-10s %-22s %s\n", p.ID, p.Kind, p.Price, p.Category, p.Name)
		}
		return nil
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the normalized catalog to an XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, release, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		defer release()
		f, err := os.Create(exportFile)
		if err != nil {
			return err
		}
		if err := sheet.ExportCatalog(f, page.Store.All()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("exported %d products to %s\n", page.Store.Count(), exportFile)
		return nil
	},
}

// loadCatalog mounts a catalog page; release unmounts it and closes the app.
func loadCatalog(cmd *cobra.Command) (page *usecase.CatalogPage, release func(), err error) {
	application, err := loadApp()
	if err != nil {
		return nil, nil, err
	}
	page = usecase.NewCatalogPage(application.Products, application.Normalizer)
	release = func() {
		page.Unmount()
		_ = application.Close(context.Background())
	}
	l := page.Mount(cmd.Context())
	<-l.Done()
	if err := page.Err(); err != nil {
		release()
		return nil, nil, err
	}
	return page, release, nil
}

func init() {
	catalogListCmd.Flags().StringVar(&listKind, "kind", string(domain.KindAll), "All, Perfume or Attar")
	catalogExportCmd.Flags().StringVarP(&exportFile, "file", "f", "catalog.xlsx", "output file")
	catalogCmd.AddCommand(catalogListCmd, catalogExportCmd)
	rootCmd.AddCommand(catalogCmd)
}

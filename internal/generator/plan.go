package generator

import (
	"github.com/google/uuid"
	"github.com/maxdollinger/specimen.io/internal/matrix"
	"github.com/maxdollinger/specimen.io/internal/populate"
)

// Namespace seeds the filesystem UUIDs, which only depend on the job name.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/maxdollinger/specimen.io"))

func FsUUID(job matrix.Job) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(job.Name))
}

// Plan turns a job's populators into its ordered steps. The report is filled
// by the unicode step and is nil for jobs without one.
func Plan(job matrix.Job) ([]populate.Step, *populate.UnicodeReport, error) {
	steps := populate.Catalog(populate.CatalogOptions{
		BlockSize: job.BlockSize,
		Encrypted: job.Has(matrix.PopulateEncrypted),
		LargeDir:  job.Has(matrix.PopulateLargeDir),
	})

	var report *populate.UnicodeReport
	for _, p := range job.Populators {
		switch p {
		case matrix.PopulateLargeDir:
			steps = append(steps, populate.LargeDirStep(job.LargeFileCount))
		case matrix.PopulateBoundary:
			steps = append(steps, populate.BoundaryStep(populate.BoundaryTiers(job.BlockSize, job.Extents(), job.HugeFile())))
		case matrix.PopulateUnicode:
			points, err := populate.ReadUnicodeDBFile(job.UnicodeDB)
			if err != nil {
				return nil, nil, err
			}
			report = &populate.UnicodeReport{}
			steps = append(steps, populate.UnicodeStep(points, report))
		}
	}

	return steps, report, nil
}

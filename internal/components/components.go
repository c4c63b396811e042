// Package components holds the bring-up logic of every deployable package
// and registers them with their known versions.
package components

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ralt/clusterdeploy/internal/archive"
	"github.com/ralt/clusterdeploy/internal/conda"
	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/utils"
)

type definition struct {
	id, name  string
	component deploy.Component
	versions  []*deploy.Version
}

func definitions() []definition {
	return []definition{
		{"zookeeper", "ZooKeeper", Zookeeper{}, []*deploy.Version{
			deploy.ArchiveVersion("3.4.8", "3.4.x", archive.NewSpec(
				"https://archive.apache.org/dist/zookeeper/zookeeper-3.4.8/zookeeper-3.4.8.tar.gz",
				"tar.gz", "zookeeper-3.4.8")),
		}},
		{"kafka", "Kafka", Kafka{}, []*deploy.Version{
			deploy.ArchiveVersion("2.13-2.7.0", "2.7.x", archive.NewSpec(
				"https://archive.apache.org/dist/kafka/2.7.0/kafka_2.13-2.7.0.tgz",
				"tar.gz", "kafka_2.13-2.7.0")),
		}},
		{"spark", "Spark", Spark{}, []*deploy.Version{
			deploy.ArchiveVersion("2.4.0", "2.4.x", archive.NewSpec(
				"https://archive.apache.org/dist/spark/spark-2.4.0/spark-2.4.0-bin-hadoop2.6.tgz",
				"tgz", "spark-2.4.0-bin-hadoop2.6")),
			deploy.ArchiveVersion("3.1.1", "2.4.x", archive.NewSpec(
				"https://archive.apache.org/dist/spark/spark-3.1.1/spark-3.1.1-bin-hadoop3.2.tgz",
				"tgz", "spark-3.1.1-bin-hadoop3.2")),
		}},
		{"hadoop", "Hadoop", Hadoop{}, []*deploy.Version{
			deploy.ArchiveVersion("2.6.0", "2.6.x", archive.NewSpec(
				"https://archive.apache.org/dist/hadoop/core/hadoop-2.6.0/hadoop-2.6.0.tar.gz",
				"tar.gz", "hadoop-2.6.0")),
		}},
		{"influxdb", "InfluxDB", InfluxDB{}, []*deploy.Version{
			deploy.ArchiveVersion("1.7.3", "1.7.x", archive.NewSpec(
				"https://dl.influxdata.com/influxdb/releases/influxdb-1.7.3_linux_amd64.tar.gz",
				"tar.gz", "influxdb-1.7.3-1")),
		}},
		{"resource-monitor", "Resource Monitor", ResourceMonitor{Build: map[string]bool{"0.3": true}}, []*deploy.Version{
			deploy.ArchiveVersion("0.3", "0.3", archive.NewSpec(
				"https://github.com/thegeman/resource-monitor/archive/refs/tags/v0.3.tar.gz",
				".tar.gz", "resource-monitor-0.3")),
		}},
		{"postgresql", "PostgreSQL", PostgreSQL{}, []*deploy.Version{
			deploy.EnvironmentVersion("12.2", "12.x", conda.Spec{
				Packages: []string{"postgresql=12.2"},
			}),
		}},
		{"airflow", "Airflow", Airflow{}, []*deploy.Version{
			deploy.EnvironmentVersion("2.0.1", "2.x", conda.Spec{
				Packages:    []string{"sqlalchemy=1.3.23", "psycopg2=2.8.6"},
				PipPackages: []string{"apache-airflow==2.0.1"},
			}),
		}},
	}
}

// Register adds every known package and version to reg
func Register(reg *deploy.Registry) error {
	for _, d := range definitions() {
		p := deploy.NewPackage(d.id, d.name, d.component)
		for _, v := range d.versions {
			if err := p.AddVersion(v); err != nil {
				return err
			}
		}
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every known package
func NewRegistry() (*deploy.Registry, error) {
	reg := deploy.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// writeHostList writes one host per line to path
func writeHostList(path string, hosts []string) error {
	var b strings.Builder
	for _, h := range hosts {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	if err := utils.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return &models.DeployError{Type: models.ErrRenderFailed, Package: filepath.Base(path), Err: err}
	}
	return nil
}

// noSettings is embedded by components without deployment settings
type noSettings struct{}

func (noSettings) Settings() []deploy.Setting {
	return nil
}

// bringupFunc adapts a function to deploy.Bringup
type bringupFunc func(ctx context.Context, inst *deploy.Installation) error

func (f bringupFunc) DeployInstalled(ctx context.Context, inst *deploy.Installation) error {
	return f(ctx, inst)
}

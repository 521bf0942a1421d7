package main

import (
	"fmt"

	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/artifactregistry"
	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/compute"
	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/firestore"
	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/projects"
	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// appPort is the port the playerauth container listens on inside the VM
const appPort = "5000"

// stack holds the values shared by every resource of one environment
type stack struct {
	env            string
	project        string
	region         string
	zone           string
	machineType    string
	domain         string
	tenantID       string
	allowedOrigins string
	namePrefix     string
}

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		s := loadStack(ctx)

		apiDeps, err := enableAPIs(ctx, s)
		if err != nil {
			return err
		}

		if _, err := artifactregistry.NewRepository(ctx, s.namePrefix+"-registry", &artifactregistry.RepositoryArgs{
			RepositoryId: pulumi.String("playerauth"),
			Location:     pulumi.String(s.region),
			Format:       pulumi.String("DOCKER"),
			Description:  pulumi.String("Docker images for playerauth"),
		}, pulumi.DependsOn(apiDeps)); err != nil {
			return err
		}

		// Holds the players and admins collections
		dbName := s.databaseName()
		firestoreDB, err := firestore.NewDatabase(ctx, s.namePrefix+"-firestore", &firestore.DatabaseArgs{
			Name:                     pulumi.String(dbName),
			LocationId:               pulumi.String(s.region),
			Type:                     pulumi.String("FIRESTORE_NATIVE"),
			ConcurrencyMode:          pulumi.String("OPTIMISTIC"),
			AppEngineIntegrationMode: pulumi.String("DISABLED"),
		}, pulumi.DependsOn(apiDeps))
		if err != nil {
			return err
		}

		sa, iamBindings, err := newServiceAccount(ctx, s, apiDeps)
		if err != nil {
			return err
		}

		network, subnet, err := newNetwork(ctx, s, apiDeps)
		if err != nil {
			return err
		}

		staticIP, err := compute.NewAddress(ctx, s.namePrefix+"-ip", &compute.AddressArgs{
			Region:      pulumi.String(s.region),
			AddressType: pulumi.String("EXTERNAL"),
			Description: pulumi.String("Static IP for playerauth"),
		})
		if err != nil {
			return err
		}

		instance, err := compute.NewInstance(ctx, s.namePrefix+"-instance", &compute.InstanceArgs{
			Name:        pulumi.String(s.namePrefix + "-instance"),
			MachineType: pulumi.String(s.machineType),
			Zone:        pulumi.String(s.zone),
			Tags:        pulumi.StringArray{pulumi.String("playerauth-server")},
			BootDisk: &compute.InstanceBootDiskArgs{
				InitializeParams: &compute.InstanceBootDiskInitializeParamsArgs{
					Image: pulumi.String("cos-cloud/cos-stable"),
					Size:  pulumi.Int(10),
					Type:  pulumi.String("pd-standard"),
				},
			},
			NetworkInterfaces: compute.InstanceNetworkInterfaceArray{
				&compute.InstanceNetworkInterfaceArgs{
					Network:    network.ID(),
					Subnetwork: subnet.ID(),
					AccessConfigs: compute.InstanceNetworkInterfaceAccessConfigArray{
						&compute.InstanceNetworkInterfaceAccessConfigArgs{NatIp: staticIP.Address},
					},
				},
			},
			ServiceAccount: &compute.InstanceServiceAccountArgs{
				Email:  sa.Email,
				Scopes: pulumi.StringArray{pulumi.String("https://www.googleapis.com/auth/cloud-platform")},
			},
			Metadata: pulumi.StringMap{
				"playerauth-image":           pulumi.String(s.imageURL()),
				"playerauth-project-id":      pulumi.String(s.project),
				"playerauth-database":        pulumi.String(dbName),
				"playerauth-tenant-id":       pulumi.String(s.tenantID),
				"playerauth-allowed-origins": pulumi.String(s.allowedOrigins),
				"playerauth-domain":          pulumi.String(s.domain),
			},
			MetadataStartupScript:  startupScript(s),
			AllowStoppingForUpdate: pulumi.Bool(true),
			Description:            pulumi.String(fmt.Sprintf("playerauth %s server", s.env)),
		}, pulumi.DependsOn(iamBindings))
		if err != nil {
			return err
		}

		ctx.Export("registryUrl", pulumi.String(s.registryURL()))
		ctx.Export("dockerPushCommand", pulumi.String("docker push "+s.imageURL()))
		ctx.Export("instanceName", instance.Name)
		ctx.Export("externalIp", staticIP.Address)
		ctx.Export("serviceAccountEmail", sa.Email)
		ctx.Export("firestoreDatabase", firestoreDB.Name)
		ctx.Export("sshCommand", pulumi.Sprintf(
			"gcloud compute ssh %s --zone=%s --tunnel-through-iap", instance.Name, s.zone,
		))
		if s.domain != "" {
			ctx.Export("domain", pulumi.String(s.domain))
		}
		return nil
	})
}

func loadStack(ctx *pulumi.Context) stack {
	cfg := config.New(ctx, "playerauth-infra")
	gcpCfg := config.New(ctx, "gcp")

	s := stack{
		env:            cfg.Require("environment"),
		machineType:    cfg.Get("machineType"),
		domain:         cfg.Get("domain"),
		tenantID:       cfg.Get("authTenantId"),
		allowedOrigins: cfg.Get("allowedOrigins"),
		project:        gcpCfg.Require("project"),
		region:         gcpCfg.Get("region"),
		zone:           gcpCfg.Get("zone"),
	}
	if s.machineType == "" {
		s.machineType = "e2-micro"
	}
	if s.region == "" {
		s.region = "us-west1"
	}
	if s.zone == "" {
		s.zone = s.region + "-b"
	}
	s.namePrefix = "playerauth-" + s.env
	return s
}

// databaseName is "playerauth-stg" or "playerauth-prod" (minimum 4 characters required)
func (s stack) databaseName() string {
	return s.namePrefix
}

func (s stack) registryURL() string {
	return fmt.Sprintf("%s-docker.pkg.dev/%s/playerauth", s.region, s.project)
}

func (s stack) imageURL() string {
	return s.registryURL() + "/playerauth:latest"
}

func enableAPIs(ctx *pulumi.Context, s stack) ([]pulumi.Resource, error) {
	apis := map[string]string{
		"compute":          "compute.googleapis.com",
		"artifactregistry": "artifactregistry.googleapis.com",
		"firestore":        "firestore.googleapis.com",
		"iam":              "iam.googleapis.com",
		"identitytoolkit":  "identitytoolkit.googleapis.com",
	}

	deps := make([]pulumi.Resource, 0, len(apis))
	for name, api := range apis {
		svc, err := projects.NewService(ctx, fmt.Sprintf("%s-enable-%s-api", s.namePrefix, name), &projects.ServiceArgs{
			Service:                  pulumi.String(api),
			DisableDependentServices: pulumi.Bool(false),
			DisableOnDestroy:         pulumi.Bool(false),
		})
		if err != nil {
			return nil, err
		}
		deps = append(deps, svc)
	}
	return deps, nil
}

// newServiceAccount creates the runtime identity. It reads and writes
// Firestore documents and looks up users for revocation checks.
func newServiceAccount(ctx *pulumi.Context, s stack, deps []pulumi.Resource) (*serviceaccount.Account, []pulumi.Resource, error) {
	sa, err := serviceaccount.NewAccount(ctx, s.namePrefix+"-sa", &serviceaccount.AccountArgs{
		AccountId:   pulumi.String(s.namePrefix + "-run"),
		DisplayName: pulumi.String(fmt.Sprintf("playerauth %s runtime", s.env)),
	}, pulumi.DependsOn(deps))
	if err != nil {
		return nil, nil, err
	}

	roles := []struct {
		name string
		role string
	}{
		{"artifact-registry-reader", "roles/artifactregistry.reader"},
		{"firestore-user", "roles/datastore.user"},
		{"firebase-auth-viewer", "roles/firebaseauth.viewer"},
		{"logging-writer", "roles/logging.logWriter"},
	}

	bindings := make([]pulumi.Resource, 0, len(roles))
	for _, r := range roles {
		b, err := projects.NewIAMMember(ctx, fmt.Sprintf("%s-sa-%s", s.namePrefix, r.name), &projects.IAMMemberArgs{
			Project: pulumi.String(s.project),
			Role:    pulumi.String(r.role),
			Member:  pulumi.Sprintf("serviceAccount:%s", sa.Email),
		})
		if err != nil {
			return nil, nil, err
		}
		bindings = append(bindings, b)
	}
	return sa, bindings, nil
}

func newNetwork(ctx *pulumi.Context, s stack, deps []pulumi.Resource) (*compute.Network, *compute.Subnetwork, error) {
	network, err := compute.NewNetwork(ctx, s.namePrefix+"-network", &compute.NetworkArgs{
		AutoCreateSubnetworks: pulumi.Bool(false),
	}, pulumi.DependsOn(deps))
	if err != nil {
		return nil, nil, err
	}

	subnet, err := compute.NewSubnetwork(ctx, s.namePrefix+"-subnet", &compute.SubnetworkArgs{
		IpCidrRange: pulumi.String("10.10.0.0/24"),
		Region:      pulumi.String(s.region),
		Network:     network.ID(),
	})
	if err != nil {
		return nil, nil, err
	}

	rules := []struct {
		name    string
		ports   []string
		sources []string
	}{
		{"allow-http", []string{"80", "443"}, []string{"0.0.0.0/0"}},
		// IAP range
		{"allow-iap-ssh", []string{"22"}, []string{"35.235.240.0/20"}},
		// GCP health checkers
		{"allow-health-check", []string{appPort}, []string{"130.211.0.0/22", "35.191.0.0/16"}},
	}
	for _, r := range rules {
		ports := pulumi.StringArray{}
		for _, p := range r.ports {
			ports = append(ports, pulumi.String(p))
		}
		sources := pulumi.StringArray{}
		for _, src := range r.sources {
			sources = append(sources, pulumi.String(src))
		}
		if _, err := compute.NewFirewall(ctx, fmt.Sprintf("%s-%s", s.namePrefix, r.name), &compute.FirewallArgs{
			Network: network.Name,
			Allows: compute.FirewallAllowArray{
				&compute.FirewallAllowArgs{Protocol: pulumi.String("tcp"), Ports: ports},
			},
			SourceRanges: sources,
			TargetTags:   pulumi.StringArray{pulumi.String("playerauth-server")},
		}); err != nil {
			return nil, nil, err
		}
	}

	router, err := compute.NewRouter(ctx, s.namePrefix+"-router", &compute.RouterArgs{
		Network: network.ID(),
		Region:  pulumi.String(s.region),
	})
	if err != nil {
		return nil, nil, err
	}
	if _, err := compute.NewRouterNat(ctx, s.namePrefix+"-nat", &compute.RouterNatArgs{
		Router:                        router.Name,
		Region:                        pulumi.String(s.region),
		NatIpAllocateOption:           pulumi.String("AUTO_ONLY"),
		SourceSubnetworkIpRangesToNat: pulumi.String("ALL_SUBNETWORKS_ALL_IP_RANGES"),
	}); err != nil {
		return nil, nil, err
	}

	return network, subnet, nil
}

// startupScript runs the playerauth container on Container-Optimized OS and,
// when a domain is configured, Caddy in front of it for TLS.
// Credentials come from the instance service account, so SERVICE_ACCOUNT is unset.
func startupScript(s stack) pulumi.StringOutput {
	return pulumi.Sprintf(`#!/bin/bash
set -e
export HOME=/home/chronos

md() {
  curl -sf "http://metadata.google.internal/computeMetadata/v1/instance/attributes/$1" -H "Metadata-Flavor: Google"
}

IMAGE=$(md playerauth-image)
DOMAIN=$(md playerauth-domain)

docker-credential-gcr configure-docker --registries=%s-docker.pkg.dev
docker pull ${IMAGE}

docker rm -f playerauth caddy 2>/dev/null || true
docker network create playerauth-net 2>/dev/null || true

docker run -d \
  --name playerauth \
  --restart=always \
  --network playerauth-net \
  -p %s:%s \
  -e PORT=%s \
  -e FIREBASE_PROJECT_ID="$(md playerauth-project-id)" \
  -e FIRESTORE_DATABASE="$(md playerauth-database)" \
  -e FIREBASE_TENANT_ID="$(md playerauth-tenant-id)" \
  -e CORS_ALLOWED_ORIGINS="$(md playerauth-allowed-origins)" \
  ${IMAGE}

if [ -n "${DOMAIN}" ]; then
  docker run -d \
    --name caddy \
    --restart=always \
    --network playerauth-net \
    -p 80:80 -p 443:443 \
    -v /home/chronos/caddy_data:/data \
    caddy caddy reverse-proxy --from ${DOMAIN} --to playerauth:%s
fi
`, s.region, appPort, appPort, appPort, appPort)
}

package dnsbackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
)

// Route53Config configures a Route53Backend.
type Route53Config struct {
	// HostedZoneIDs maps a zone name (as used in registry records, e.g.
	// "hosts.example.com") to its Route 53 hosted zone id.
	HostedZoneIDs map[string]string
	TTL           int64
}

// Route53Backend propagates A and AAAA records into AWS Route 53, for operators
// whose authoritative DNS runs there instead of PowerDNS.
type Route53Backend struct {
	client  *route53.Route53
	zoneIDs map[string]string
	ttl     int64
}

// NewRoute53Backend builds a Route53Backend from an AWS session (credentials
// and region resolved the standard SDK way: env vars, shared config, or an
// attached instance/task role).
func NewRoute53Backend(sess *session.Session, cfg Route53Config) *Route53Backend {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 300
	}
	return &Route53Backend{
		client:  route53.New(sess),
		zoneIDs: cfg.HostedZoneIDs,
		ttl:     ttl,
	}
}

func (b *Route53Backend) ZoneExists(_ context.Context, zone string) (bool, error) {
	_, ok := b.zoneIDs[zone]
	return ok, nil
}

func (b *Route53Backend) UpsertA(ctx context.Context, zone, hostname, ip string) (string, error) {
	zoneID, ok := b.zoneIDs[zone]
	if !ok {
		return "", ErrZoneNotFound
	}
	name := fqdn(hostname, zone)

	_, err := b.client.ChangeResourceRecordSetsWithContext(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &route53.ChangeBatch{
			Changes: []*route53.Change{
				{
					Action: aws.String(route53.ChangeActionUpsert),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name: aws.String(name),
						Type: aws.String(rrType(ip)),
						TTL:  aws.Int64(b.ttl),
						ResourceRecords: []*route53.ResourceRecord{
							{Value: aws.String(ip)},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", classifyAWSErr(err)
	}
	return name, nil
}

func (b *Route53Backend) DeleteA(ctx context.Context, zone, hostname, ip, _ string) error {
	zoneID, ok := b.zoneIDs[zone]
	if !ok {
		return ErrZoneNotFound
	}
	name := fqdn(hostname, zone)

	_, err := b.client.ChangeResourceRecordSetsWithContext(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &route53.ChangeBatch{
			Changes: []*route53.Change{
				{
					Action: aws.String(route53.ChangeActionDelete),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name: aws.String(name),
						Type: aws.String(rrType(ip)),
						TTL:  aws.Int64(b.ttl),
						ResourceRecords: []*route53.ResourceRecord{
							{Value: aws.String(ip)},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return classifyAWSErr(err)
	}
	return nil
}

// classifyAWSErr treats throttling and server-side faults as transient,
// everything else (access denied, malformed input, no such hosted zone) as
// permanent.
func classifyAWSErr(err error) error {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return &TransientError{Err: err}
	}
	switch aerr.Code() {
	case route53.ErrCodeNoSuchHostedZone:
		return ErrZoneNotFound
	case route53.ErrCodeThrottlingException, route53.ErrCodePriorRequestNotCompleteException:
		return &TransientError{Err: aerr}
	}
	if strings.Contains(aerr.Code(), "Throttl") {
		return &TransientError{Err: aerr}
	}
	if reqErr, ok := aerr.(awserr.RequestFailure); ok && reqErr.StatusCode() >= 500 {
		return &TransientError{Err: aerr}
	}
	return fmt.Errorf("dnsbackend: route53: %w", aerr)
}

package k8s

import (
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

func toPodStatus(pod *corev1.Pod) controller.PodStatus {
	out := controller.PodStatus{
		Name:       pod.Name,
		Namespace:  pod.Namespace,
		UID:        string(pod.UID),
		Phase:      string(pod.Status.Phase),
		Reason:     pod.Status.Reason,
		CreatedAt:  pod.CreationTimestamp.Time,
		SpecDigest: specDigest(pod),
	}

	if pod.Status.StartTime != nil {
		out.StartTime = pod.Status.StartTime.Time
	}

	out.Containers = make([]controller.ContainerStatus, 0, len(pod.Status.ContainerStatuses))
	for i := range pod.Status.ContainerStatuses {
		out.Containers = append(out.Containers, toContainerStatus(&pod.Status.ContainerStatuses[i]))
	}

	return out
}

func toContainerStatus(cs *corev1.ContainerStatus) controller.ContainerStatus {
	out := controller.ContainerStatus{
		Name:         cs.Name,
		RestartCount: cs.RestartCount,
	}

	if cs.State.Waiting != nil {
		out.WaitingReason = cs.State.Waiting.Reason
	}

	if cs.State.Running != nil {
		out.LastTransition = cs.State.Running.StartedAt.Time
	}

	if cs.LastTerminationState.Terminated != nil {
		terminated := cs.LastTerminationState.Terminated
		out.LastTerminationReason = terminated.Reason

		if terminated.FinishedAt.Time.After(out.LastTransition) {
			out.LastTransition = terminated.FinishedAt.Time
		}
	}

	return out
}

// specDigest is a compact one-line summary of the pod spec for the evidence
// bundle; the full spec would blow the oracle's evidence cap.
func specDigest(pod *corev1.Pod) string {
	parts := make([]string, 0, len(pod.Spec.Containers))

	for i := range pod.Spec.Containers {
		c := &pod.Spec.Containers[i]

		limit := "none"
		if mem, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			limit = mem.String()
		}

		parts = append(parts, fmt.Sprintf("%s image=%s memLimit=%s", c.Name, c.Image, limit))
	}

	return strings.Join(parts, "; ")
}

func toEvent(event *corev1.Event) controller.Event {
	lastSeen := event.LastTimestamp.Time
	if lastSeen.IsZero() {
		lastSeen = event.EventTime.Time
	}

	return controller.Event{
		Type:     event.Type,
		Reason:   event.Reason,
		Message:  event.Message,
		Count:    event.Count,
		LastSeen: lastSeen,
	}
}

func sumMemoryUsage(podMetrics *metricsv1beta1.PodMetrics) string {
	total := resource.NewQuantity(0, resource.BinarySI)

	for i := range podMetrics.Containers {
		if usage := podMetrics.Containers[i].Usage.Memory(); usage != nil {
			total.Add(*usage)
		}
	}

	return total.String()
}

// toDeploymentLimits aggregates the per-container limits to the largest value,
// which is what escalation should build on.
func toDeploymentLimits(deployment *appsv1.Deployment) *controller.DeploymentLimits {
	out := &controller.DeploymentLimits{}

	for i := range deployment.Spec.Template.Spec.Containers {
		limits := deployment.Spec.Template.Spec.Containers[i].Resources.Limits

		if mem, ok := limits[corev1.ResourceMemory]; ok {
			if out.Memory == nil || mem.Cmp(*out.Memory) > 0 {
				memCopy := mem.DeepCopy()
				out.Memory = &memCopy
			}
		}

		if cpu, ok := limits[corev1.ResourceCPU]; ok {
			if out.CPU == nil || cpu.Cmp(*out.CPU) > 0 {
				cpuCopy := cpu.DeepCopy()
				out.CPU = &cpuCopy
			}
		}
	}

	return out
}

func applyLimits(container *corev1.Container, limits controller.DeploymentLimits) {
	if container.Resources.Limits == nil {
		container.Resources.Limits = corev1.ResourceList{}
	}

	if container.Resources.Requests == nil {
		container.Resources.Requests = corev1.ResourceList{}
	}

	if limits.Memory != nil {
		container.Resources.Limits[corev1.ResourceMemory] = *limits.Memory
		container.Resources.Requests[corev1.ResourceMemory] = *limits.Memory
	}

	if limits.CPU != nil {
		container.Resources.Limits[corev1.ResourceCPU] = *limits.CPU
	}
}
